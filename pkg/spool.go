// Package pkg provides supporting utilities for flakyfence.
package pkg

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ErrReadOnly is returned when appending to a spool opened for reading.
var ErrReadOnly = errors.New("spool is read-only")

// Spool is a generic append-only disk log for items of type T. Analyses
// spool probe transcripts through it so executor output never accumulates
// in memory.
type Spool[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	Get(index uint64) (T, error)
	Range(f func(index uint64, item T) error) error
	Close() error
}

type spoolImpl[T any] struct {
	path    string
	file    *os.File
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
}

// Append implements Spool.
func (s *spoolImpl[T]) Append(item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoder == nil {
		return ErrReadOnly
	}

	if err := s.encoder.Encode(item); err != nil {
		slog.Error("failed to encode spool item", "path", s.path, "index", s.length, "error", err)
		return fmt.Errorf("failed to encode spool item: %w", err)
	}

	s.length++

	return nil
}

// Path implements Spool.
func (s *spoolImpl[T]) Path() string {
	return s.path
}

// Close implements Spool.
func (s *spoolImpl[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		if err := s.file.Close(); err != nil {
			slog.Error("failed to close spool", "path", s.path, "error", err)
			return err
		}

		slog.Debug("closed spool", "path", s.path, "length", s.length)
	}

	return nil
}

// Get implements Spool.
func (s *spoolImpl[T]) Get(index uint64) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T

	if index >= s.length {
		return zero, fmt.Errorf("index %d out of bounds (length %d)", index, s.length)
	}

	file, err := os.Open(s.path)
	if err != nil {
		return zero, fmt.Errorf("failed to open spool: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close spool", "path", s.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	var item T

	for i := uint64(0); i <= index; i++ {
		if err := decoder.Decode(&item); err != nil {
			return zero, fmt.Errorf("failed to decode spool item at index %d: %w", i, err)
		}
	}

	return item, nil
}

// Len implements Spool.
func (s *spoolImpl[T]) Len() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.length
}

// Range implements Spool.
func (s *spoolImpl[T]) Range(fn func(index uint64, item T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open spool: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close spool", "path", s.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	var item T

	for i := range s.length {
		if err := decoder.Decode(&item); err != nil {
			return fmt.Errorf("failed to decode spool item at index %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

// NewSpool creates a writable spool for items of type T in dir.
func NewSpool[T any](dir string) (Spool[T], error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	file, err := os.CreateTemp(dir, "probes-*.gob")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}

	slog.Debug("created spool", "path", file.Name())

	return &spoolImpl[T]{
		path:    file.Name(),
		file:    file,
		encoder: gob.NewEncoder(file),
		length:  0,
	}, nil
}

// OpenSpool opens an existing spool file for reading. The item count is
// recovered by decoding the file once; Append on the returned spool fails
// with ErrReadOnly.
func OpenSpool[T any](path string) (Spool[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close spool", "path", path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	var length uint64

	for {
		var item T
		if err := decoder.Decode(&item); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to scan spool item at index %d: %w", length, err)
		}
		length++
	}

	return &spoolImpl[T]{path: path, length: length}, nil
}
