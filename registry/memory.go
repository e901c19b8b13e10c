package registry

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-process registry.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]map[string]Value
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]map[string]Value)}
}

// CreateKey makes key (and nothing else) exist. Creating an existing key is a
// no-op.
func (m *Memory) CreateKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := normalizeKey(key)
	if _, ok := m.keys[k]; !ok {
		m.keys[k] = make(map[string]Value)
	}
}

// DeleteKey removes key and its values.
func (m *Memory) DeleteKey(key string) {
	m.mu.Lock()
	delete(m.keys, normalizeKey(key))
	m.mu.Unlock()
}

func (m *Memory) Query(_ context.Context, key, name string) (Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vals, ok := m.keys[normalizeKey(key)]
	if !ok {
		return Value{}, ErrNotFound
	}
	v, ok := vals[strings.ToLower(name)]
	if !ok {
		return Value{}, ErrNotFound
	}
	if v.Kind == KindBinary {
		v.Binary = append([]byte(nil), v.Binary...)
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, name string, v Value) error {
	if _, err := FormatValue(v); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	vals, ok := m.keys[normalizeKey(key)]
	if !ok {
		return ErrNotFound
	}
	if v.Kind == KindBinary {
		v.Binary = append([]byte(nil), v.Binary...)
	}
	vals[strings.ToLower(name)] = v
	return nil
}
