package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
)

const defaultBatchSize = 100

// sink buffers rows and writes them to a new Parquet file per batch.
type sink[T any] struct {
	outputDir string
	prefix    string
	batchSize int

	mu     sync.Mutex
	buffer []T
}

func newSink[T any](outputDir, prefix string, batchSize int) (*sink[T], error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &sink[T]{
		outputDir: outputDir,
		prefix:    prefix,
		batchSize: batchSize,
		buffer:    make([]T, 0, batchSize),
	}, nil
}

func (s *sink[T]) add(row T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, row)
	if len(s.buffer) >= s.batchSize {
		return s.flushLocked()
	}
	return nil
}

func (s *sink[T]) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked writes the buffer to a new file. Caller must hold the lock.
func (s *sink[T]) flushLocked() error {
	if len(s.buffer) == 0 {
		return nil
	}

	now := time.Now()
	filename := fmt.Sprintf("%s_%s_%d.parquet", s.prefix, now.Format("20060102_150405"), now.UnixNano())
	if err := parquet.WriteFile(filepath.Join(s.outputDir, filename), s.buffer); err != nil {
		return fmt.Errorf("failed to write %s parquet file: %w", s.prefix, err)
	}

	s.buffer = s.buffer[:0]
	return nil
}

// readDir loads every Parquet file in dir whose name starts with prefix.
func readDir[T any](dir, prefix string) ([]T, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_*.parquet"))
	if err != nil {
		return nil, err
	}
	var rows []T
	for _, m := range matches {
		part, err := parquet.ReadFile[T](m)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", m, err)
		}
		rows = append(rows, part...)
	}
	return rows, nil
}
