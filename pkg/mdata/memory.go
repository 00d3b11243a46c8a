package mdata

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process directory.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Value
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Value)}
}

func (m *Memory) Get(ctx context.Context, key []byte) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[string(key)]
	if !ok {
		return Value{}, noSuchEntry(key)
	}
	return Value{Content: bytes.Clone(v.Content), Version: v.Version}, nil
}

func (m *Memory) Insert(ctx context.Context, key, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[string(key)]; ok {
		return fmt.Errorf("%w: %x", ErrEntryExists, key)
	}
	m.entries[string(key)] = Value{Content: bytes.Clone(content)}
	return nil
}

func (m *Memory) Update(ctx context.Context, key, content []byte, version uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[string(key)]
	if !ok {
		return noSuchEntry(key)
	}
	if err := checkSuccessor(key, v.Version, version); err != nil {
		return err
	}
	m.entries[string(key)] = Value{Content: bytes.Clone(content), Version: version}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key []byte, version uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[string(key)]
	if !ok {
		return noSuchEntry(key)
	}
	if err := checkSuccessor(key, v.Version, version); err != nil {
		return err
	}
	delete(m.entries, string(key))
	return nil
}

// Keys returns all keys in byte order.
func (m *Memory) Keys(ctx context.Context) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	keys := make([][]byte, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, []byte(k))
	}
	m.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys, nil
}
