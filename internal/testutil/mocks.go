// Package testutil provides shared test utilities and mocks for unit testing.
package testutil

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/fluxbase-eu/fluxpack/internal/storage"
)

// ErrMockObjectNotFound is returned when an object is not found in the mock sink
var ErrMockObjectNotFound = errors.New("object not found")

// MockSink implements storage.Sink in memory for testing
type MockSink struct {
	mu      sync.RWMutex
	objects map[string][]byte // dir/name -> data
	writes  int

	// OnWrite runs before each write; a returned error fails the write
	OnWrite func(ctx context.Context, dir, name string, data []byte) error
}

// NewMockSink creates a new mock sink
func NewMockSink() *MockSink {
	return &MockSink{
		objects: make(map[string][]byte),
	}
}

func (m *MockSink) Name() string {
	return "mock"
}

func (m *MockSink) Write(ctx context.Context, dir, name string, data []byte) (*storage.Object, error) {
	if m.OnWrite != nil {
		if err := m.OnWrite(ctx, dir, name, data); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := path.Join(dir, name)
	content := make([]byte, len(data))
	copy(content, data)
	m.objects[key] = content
	m.writes++

	return &storage.Object{
		Key:          key,
		Location:     "mock://" + key,
		Size:         int64(len(content)),
		ContentType:  storage.ContentType,
		LastModified: time.Now(),
	}, nil
}

// Get returns the last content written to dir/name
func (m *MockSink) Get(dir, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[path.Join(dir, name)]
	if !ok {
		return nil, ErrMockObjectNotFound
	}
	return data, nil
}

// Writes returns how many writes succeeded
func (m *MockSink) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
