// Package mdata stores versioned key/value entries of a mutable directory.
// Every change names the version it creates, which must be exactly one more
// than the current version, so concurrent writers cannot silently overwrite
// each other.
package mdata

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoSuchEntry      = errors.New("no such entry")
	ErrEntryExists      = errors.New("entry already exists")
	ErrInvalidSuccessor = errors.New("invalid successor version")
)

// Value is an entry's content at a version. Inserted entries start at version 0.
type Value struct {
	Content []byte
	Version uint64
}

// Entries is a single directory of versioned entries.
type Entries interface {
	Get(ctx context.Context, key []byte) (Value, error)
	// Insert creates key at version 0.
	Insert(ctx context.Context, key, content []byte) error
	// Update replaces the content of key; version must be the current version plus one.
	Update(ctx context.Context, key, content []byte, version uint64) error
	// Delete removes key; version must be the current version plus one.
	Delete(ctx context.Context, key []byte, version uint64) error
	Keys(ctx context.Context) ([][]byte, error)
}

func checkSuccessor(key []byte, current, next uint64) error {
	if next != current+1 {
		return fmt.Errorf("%w: entry %x is at version %d, got %d", ErrInvalidSuccessor, key, current, next)
	}
	return nil
}

func noSuchEntry(key []byte) error {
	return fmt.Errorf("%w: %x", ErrNoSuchEntry, key)
}
