package mdata

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/i5heu/ouroboros-idata/pkg/wire"
)

// EntryPrefix starts every directory entry key: "mdata:<directory>:<hex key>".
const EntryPrefix = "mdata:"

const (
	fieldVersion protowire.Number = 1
	fieldContent protowire.Number = 2
)

// Badger keeps one directory in a shared BadgerDB. Version checks and writes
// happen in one transaction; a concurrent writer to the same entry makes the
// transaction fail with badger.ErrConflict.
type Badger struct {
	db     *badger.DB
	prefix string
}

// NewBadger opens the directory called name inside db.
func NewBadger(db *badger.DB, name string) (*Badger, error) {
	if name == "" || strings.Contains(name, ":") {
		return nil, fmt.Errorf("invalid directory name %q", name)
	}
	return &Badger{db: db, prefix: EntryPrefix + name + ":"}, nil
}

func (b *Badger) key(key []byte) []byte {
	return []byte(b.prefix + hex.EncodeToString(key))
}

func encodeValue(v Value) []byte {
	out := wire.AppendVarint(nil, fieldVersion, v.Version)
	return wire.AppendBytes(out, fieldContent, v.Content)
}

func decodeValue(b []byte) (Value, error) {
	var v Value
	err := wire.Walk(b, func(f wire.Field) error {
		switch f.Num {
		case fieldVersion:
			if err := f.Expect(protowire.VarintType); err != nil {
				return err
			}
			v.Version = f.Varint
		case fieldContent:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			v.Content = append([]byte{}, f.Bytes...)
		}
		return nil
	})
	return v, err
}

func (b *Badger) load(txn *badger.Txn, key []byte) (Value, error) {
	item, err := txn.Get(b.key(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Value{}, noSuchEntry(key)
	}
	if err != nil {
		return Value{}, fmt.Errorf("failed to get entry: %w", err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return Value{}, fmt.Errorf("failed to read entry: %w", err)
	}
	return decodeValue(raw)
}

func (b *Badger) Get(ctx context.Context, key []byte) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, err
	}
	var v Value
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = b.load(txn, key)
		return err
	})
	return v, err
}

func (b *Badger) Insert(ctx context.Context, key, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		_, err := b.load(txn, key)
		if err == nil {
			return fmt.Errorf("%w: %x", ErrEntryExists, key)
		}
		if !errors.Is(err, ErrNoSuchEntry) {
			return err
		}
		return txn.Set(b.key(key), encodeValue(Value{Content: content}))
	})
}

func (b *Badger) Update(ctx context.Context, key, content []byte, version uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		current, err := b.load(txn, key)
		if err != nil {
			return err
		}
		if err := checkSuccessor(key, current.Version, version); err != nil {
			return err
		}
		return txn.Set(b.key(key), encodeValue(Value{Content: content, Version: version}))
	})
}

func (b *Badger) Delete(ctx context.Context, key []byte, version uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		current, err := b.load(txn, key)
		if err != nil {
			return err
		}
		if err := checkSuccessor(key, current.Version, version); err != nil {
			return err
		}
		return txn.Delete(b.key(key))
	})
}

// Keys returns all keys of the directory in byte order.
func (b *Badger) Keys(ctx context.Context) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(b.prefix)
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k, err := hex.DecodeString(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return fmt.Errorf("malformed entry key %q: %w", it.Item().Key(), err)
			}
			keys = append(keys, k)
		}
		return nil
	})
	return keys, err
}
