package chunkstore

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sort"
	"sync"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
)

// Memory keeps records in process memory.
type Memory struct {
	mu      sync.RWMutex
	limit   int
	records map[address.Address]chunk.Record
}

// NewMemory returns an empty store accepting records of up to limit bytes.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit, records: make(map[address.Address]chunk.Record)}
}

func (m *Memory) Get(ctx context.Context, addr address.Address) (chunk.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[addr]
	if !ok {
		return nil, notFound(addr)
	}
	return rec, nil
}

func (m *Memory) Put(ctx context.Context, rec chunk.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPut(rec, m.limit); err != nil {
		return err
	}
	addr := rec.Address()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[addr]; ok {
		if sameRecord(existing, rec) {
			return nil
		}
		return fmt.Errorf("%w: %s holds different content", chunk.ErrAlreadyExists, addr)
	}
	m.records[addr] = rec
	return nil
}

func (m *Memory) Has(ctx context.Context, addr address.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[addr]
	return ok, nil
}

func (m *Memory) Delete(ctx context.Context, addr address.Address, requester ed25519.PublicKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[addr]
	if !ok {
		return notFound(addr)
	}
	if err := checkDelete(rec, requester); err != nil {
		return err
	}
	delete(m.records, addr)
	return nil
}

// List returns the addresses of vis in name order.
func (m *Memory) List(ctx context.Context, vis address.Visibility) ([]address.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []address.Address
	for addr := range m.records {
		if addr.Visibility == vis {
			out = append(out, addr)
		}
	}
	m.mu.RUnlock()
	sortAddresses(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func sortAddresses(addrs []address.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Visibility != addrs[j].Visibility {
			return addrs[i].Visibility < addrs[j].Visibility
		}
		return string(addrs[i].Name[:]) < string(addrs[j].Name[:])
	})
}
