package embedder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// fakeCapability returns vectorFor(text) for every input unless fail says
// otherwise for a given call number (1-based).
type fakeCapability struct {
	mu     sync.Mutex
	calls  [][]string
	fail   func(call int, input []string) error
	delay  func(input []string) time.Duration
	closed bool

	inFlight int
	peak     int
}

func (f *fakeCapability) CreateEmbeddings(ctx context.Context, input []string, model string) (*Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), input...))
	call := len(f.calls)
	f.inFlight++
	f.peak = max(f.peak, f.inFlight)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(input)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(call, input); err != nil {
			return nil, err
		}
	}

	vectors := make([][]float32, len(input))
	for i, text := range input {
		vectors[i] = vectorFor(text)
	}
	return &Response{Vectors: vectors, Model: model}, nil
}

func (f *fakeCapability) Close() error {
	f.closed = true
	return nil
}

func (f *fakeCapability) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// peakInFlight is the highest number of concurrent calls observed.
func (f *fakeCapability) peakInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// vectorFor maps "text-N" to [N, -N]; anything else to [len, 0].
func vectorFor(text string) []float32 {
	var n int
	if _, err := fmt.Sscanf(text, "text-%d", &n); err == nil {
		return []float32{float32(n), float32(-n)}
	}
	return []float32{float32(len(text)), 0}
}

func numberedTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}
	return texts
}

// recordingSleeper records requested waits without sleeping.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.Retry.MaxRetries = 3
	return cfg
}
