package stores

import (
	"context"
	"errors"
	"sync"

	"github.com/liut/medilink/pkg/settings"
)

// ErrNotFound is returned by KV.Read for an absent key
var ErrNotFound = errors.New("not found")

// KV is a durable key-value slot holder. Write replaces the whole value.
type KV interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// backends
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// NewKV returns the backend named by settings
func NewKV() (KV, error) {
	if settings.Current.HistoryBackend == BackendMemory {
		return NewMemoryKV(), nil
	}
	rc, err := SgtRC()
	if err != nil {
		return nil, err
	}
	return NewRedisKV(rc, settings.Current.HistoryLifetime), nil
}

type memoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV returns a process-local KV
func NewMemoryKV() KV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (s *memoryKV) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *memoryKV) Write(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
