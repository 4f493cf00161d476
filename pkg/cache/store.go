// Package cache persists embedding vectors in badger so repeated texts are
// not sent to the remote service twice.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Options configures a Store.
type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// TTL expires entries after the given duration. Zero keeps them forever.
	TTL time.Duration
}

// Store maps (model, text) pairs to vectors.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens or creates a Store.
func Open(opts Options) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("cache path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return &Store{db: db, ttl: opts.TTL}, nil
}

// Key derives the storage key for text embedded with model.
func Key(model, text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return []byte("emb:" + model + ":" + hex.EncodeToString(sum[:]))
}

// Get returns the cached vector, or ok=false on a miss.
func (s *Store) Get(model, text string) (vector []float32, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(model, text))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		vector, err = decodeVector(raw)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return vector, true, nil
}

// Put stores vector for (model, text), replacing any previous value.
func (s *Store) Put(model, text string, vector []float32) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(Key(model, text), encodeVector(vector))
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector: %d bytes", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
