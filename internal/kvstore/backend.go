// Package kvstore persists every collection as one JSON document under one
// key. Reads of a missing or unreadable document yield an empty collection;
// writes replace the whole document. Atomicity comes from the Backend.
package kvstore

import (
	"context"
	"sync"
)

// View is the key space seen by one Backend.Update call.
type View interface {
	// Get returns the value of key; ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Put stages value; it is written only if the update succeeds.
	Put(key string, value []byte)
}

// Backend runs read-modify-write cycles over a fixed set of keys atomically.
// fn may run more than once if the backend retries after a conflict.
type Backend interface {
	Update(ctx context.Context, keys []string, fn func(v View) error) error
	Name() string
}

// Memory is an in-process Backend. One mutex is held for the whole update,
// so updates are serializable.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Update(ctx context.Context, _ []string, fn func(v View) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v := &memView{data: m.data, staged: map[string][]byte{}}
	if err := fn(v); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, val := range v.staged {
		m.data[k] = val
	}
	return nil
}

// Raw returns a copy of the stored value, for tests and debugging.
func (m *Memory) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return append([]byte(nil), v...), ok
}

// SetRaw overwrites a stored value, bypassing the collection codec.
func (m *Memory) SetRaw(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

type memView struct {
	data   map[string][]byte
	staged map[string][]byte
}

func (v *memView) Get(key string) ([]byte, bool, error) {
	if val, ok := v.staged[key]; ok {
		return val, true, nil
	}
	val, ok := v.data[key]
	return val, ok, nil
}

func (v *memView) Put(key string, value []byte) {
	v.staged[key] = value
}
