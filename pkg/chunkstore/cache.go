package chunkstore

import (
	"context"
	"crypto/ed25519"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
)

// Cache keeps recently read records of an underlying store in memory.
// Records are immutable, so only Delete has to invalidate entries.
type Cache struct {
	Store
	lru *lru.Cache
}

// NewCache wraps store with an LRU of the given number of records.
func NewCache(store Store, entries int) (*Cache, error) {
	c, err := lru.New(entries)
	if err != nil {
		return nil, fmt.Errorf("creating chunk cache: %w", err)
	}
	return &Cache{Store: store, lru: c}, nil
}

func (c *Cache) Get(ctx context.Context, addr address.Address) (chunk.Record, error) {
	if v, ok := c.lru.Get(addr); ok {
		return v.(chunk.Record), nil
	}
	rec, err := c.Store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.lru.Add(addr, rec)
	return rec, nil
}

func (c *Cache) Put(ctx context.Context, rec chunk.Record) error {
	if err := c.Store.Put(ctx, rec); err != nil {
		return err
	}
	c.lru.Add(rec.Address(), rec)
	return nil
}

func (c *Cache) Has(ctx context.Context, addr address.Address) (bool, error) {
	if c.lru.Contains(addr) {
		return true, nil
	}
	return c.Store.Has(ctx, addr)
}

func (c *Cache) Delete(ctx context.Context, addr address.Address, requester ed25519.PublicKey) error {
	if err := c.Store.Delete(ctx, addr, requester); err != nil {
		return err
	}
	c.lru.Remove(addr)
	return nil
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) Close() error {
	c.lru.Purge()
	return c.Store.Close()
}
