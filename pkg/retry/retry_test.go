package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/soundprediction/embedkit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

// flakyOp fails failUntilCall times with errorToReturn, then succeeds.
type flakyOp struct {
	callCount     int
	failUntilCall int
	errorToReturn error
}

func (f *flakyOp) call(ctx context.Context) (string, error) {
	f.callCount++
	if f.callCount <= f.failUntilCall {
		return "", f.errorToReturn
	}
	return "success", nil
}

func newTestExecutor(t *testing.T, maxRetries int, sleeper *recordingSleeper, opts ...Option) *Executor {
	t.Helper()
	cfg := Config{MaxRetries: maxRetries, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second}
	opts = append([]Option{
		WithSleep(sleeper.sleep),
		WithRand(func() float64 { return 0 }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	e, err := NewExecutor(cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestExecute_SuccessOnFirstAttempt(t *testing.T) {
	sleeper := &recordingSleeper{}
	op := &flakyOp{}

	got, err := Execute(context.Background(), newTestExecutor(t, 5, sleeper), op.call)
	require.NoError(t, err)
	assert.Equal(t, "success", got)
	assert.Equal(t, 1, op.callCount)
	assert.Empty(t, sleeper.waits)
}

func TestExecute_SucceedsOnLastAttempt(t *testing.T) {
	for _, maxRetries := range []int{1, 2, 3, 5, 8} {
		t.Run(fmt.Sprintf("max_retries=%d", maxRetries), func(t *testing.T) {
			sleeper := &recordingSleeper{}
			op := &flakyOp{failUntilCall: maxRetries - 1, errorToReturn: errors.New("500 internal server error")}

			got, err := Execute(context.Background(), newTestExecutor(t, maxRetries, sleeper), op.call)
			require.NoError(t, err)
			assert.Equal(t, "success", got)
			assert.Equal(t, maxRetries, op.callCount)
			assert.Len(t, sleeper.waits, maxRetries-1)
		})
	}
}

func TestExecute_ExhaustsBudget(t *testing.T) {
	for _, maxRetries := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("max_retries=%d", maxRetries), func(t *testing.T) {
			sleeper := &recordingSleeper{}
			cause := errors.New("503 service unavailable")
			op := &flakyOp{failUntilCall: 100, errorToReturn: cause}

			_, err := Execute(context.Background(), newTestExecutor(t, maxRetries, sleeper), op.call)
			require.Error(t, err)

			var exhausted *ExhaustedRetriesError
			require.ErrorAs(t, err, &exhausted)
			assert.Equal(t, maxRetries, exhausted.Attempts)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, maxRetries, op.callCount)
			assert.Len(t, sleeper.waits, maxRetries-1)
		})
	}
}

func TestExecute_TransientUsesPlainExponential(t *testing.T) {
	sleeper := &recordingSleeper{}
	op := &flakyOp{failUntilCall: 100, errorToReturn: errors.New("connection reset by peer")}

	e := newTestExecutor(t, 4, sleeper, WithRand(func() float64 { return 0.99 }))
	_, err := Execute(context.Background(), e, op.call)
	require.Error(t, err)

	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
	}, sleeper.waits)
}

func TestExecute_RateLimitHonoursSuggestedWait(t *testing.T) {
	sleeper := &recordingSleeper{}
	op := &flakyOp{failUntilCall: 1, errorToReturn: NewRateLimitError("Rate limit reached. Please try again in 10s.")}

	got, err := Execute(context.Background(), newTestExecutor(t, 3, sleeper), op.call)
	require.NoError(t, err)
	assert.Equal(t, "success", got)
	require.Len(t, sleeper.waits, 1)
	assert.GreaterOrEqual(t, sleeper.waits[0], 11*time.Second)
}

func TestExecute_RateLimitOnFinalAttemptPropagates(t *testing.T) {
	sleeper := &recordingSleeper{}
	op := &flakyOp{failUntilCall: 100, errorToReturn: NewRateLimitError("slow down")}

	_, err := Execute(context.Background(), newTestExecutor(t, 2, sleeper), op.call)
	require.Error(t, err)

	var rl *RateLimitError
	assert.ErrorAs(t, err, &rl)
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.Len(t, sleeper.waits, 1)
}

func TestExecute_ObserverEvents(t *testing.T) {
	sleeper := &recordingSleeper{}
	op := &flakyOp{failUntilCall: 2, errorToReturn: NewRateLimitError()}

	var events []Event
	e := newTestExecutor(t, 5, sleeper, WithObserver(func(ev Event) { events = append(events, ev) }))

	_, err := Execute(context.Background(), e, op.call)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for i, ev := range events {
		assert.Equal(t, i, ev.Attempt)
		assert.Equal(t, 5, ev.MaxRetries)
		assert.Equal(t, ClassRateLimited, ev.Class)
		assert.Equal(t, sleeper.waits[i], ev.Wait)
	}
}

func TestExecute_PanickingObserverIsIgnored(t *testing.T) {
	sleeper := &recordingSleeper{}
	op := &flakyOp{failUntilCall: 1, errorToReturn: errors.New("boom")}

	e := newTestExecutor(t, 3, sleeper, WithObserver(func(Event) { panic("observer failure") }))
	got, err := Execute(context.Background(), e, op.call)
	require.NoError(t, err)
	assert.Equal(t, "success", got)
	assert.Equal(t, 2, op.callCount)
}

func TestExecute_ContextCancellationDuringBackoff(t *testing.T) {
	e, err := NewExecutor(Config{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: time.Minute},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	op := &flakyOp{failUntilCall: 100, errorToReturn: errors.New("500 internal server error")}

	start := time.Now()
	_, err = Execute(ctx, e, op.call)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, 1, op.callCount)
}

func TestExecute_CancelledContextStopsAttempts(t *testing.T) {
	sleeper := &recordingSleeper{}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("aborted")
	}

	_, err := Execute(ctx, newTestExecutor(t, 5, sleeper), op)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.waits)
}

func TestNewExecutor_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero retries", Config{MaxRetries: 0, BaseDelay: time.Second}},
		{"negative retries", Config{MaxRetries: -1, BaseDelay: time.Second}},
		{"zero base delay", Config{MaxRetries: 3, BaseDelay: 0}},
		{"negative max delay", Config{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExecutor(tt.cfg)
			assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxRetries != 5 {
		t.Errorf("expected MaxRetries = 5, got %d", cfg.MaxRetries)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("expected BaseDelay = 1s, got %v", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 60*time.Second {
		t.Errorf("expected MaxDelay = 60s, got %v", cfg.MaxDelay)
	}
	assert.NoError(t, cfg.Validate())
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
