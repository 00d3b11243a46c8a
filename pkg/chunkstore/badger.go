package chunkstore

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/zeebo/blake3"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/i5heu/ouroboros-idata/internal/erasure"
	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
	"github.com/i5heu/ouroboros-idata/pkg/wire"
)

const (
	// Key prefixes in BadgerDB. Both are followed by the address string
	// ("pub:<hex>" or "res:<hex>"); slice keys end in "_<index>".
	MetadataPrefix = "meta:"
	SlicePrefix    = "chunk:"
)

// Badger persists records in a BadgerDB, each striped over Reed-Solomon
// slices so that up to ParitySlices lost or corrupted slices are tolerated.
type Badger struct {
	db     *badger.DB
	params erasure.Params
	limit  int
}

// NewBadger uses db for storage. The caller owns db and closes it.
func NewBadger(db *badger.DB, params erasure.Params, limit int) (*Badger, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Badger{db: db, params: params, limit: limit}, nil
}

type sliceMetadata struct {
	Size        uint64
	Params      erasure.Params
	SliceHashes [][32]byte
}

const (
	fieldMetaSize      protowire.Number = 1
	fieldMetaData      protowire.Number = 2
	fieldMetaParity    protowire.Number = 3
	fieldMetaSliceHash protowire.Number = 4
)

func marshalMetadata(m sliceMetadata) []byte {
	var b []byte
	b = wire.AppendVarint(b, fieldMetaSize, m.Size)
	b = wire.AppendVarint(b, fieldMetaData, uint64(m.Params.DataSlices))
	b = wire.AppendVarint(b, fieldMetaParity, uint64(m.Params.ParitySlices))
	for _, h := range m.SliceHashes {
		b = wire.AppendBytes(b, fieldMetaSliceHash, h[:])
	}
	return b
}

func unmarshalMetadata(b []byte) (sliceMetadata, error) {
	var m sliceMetadata
	err := wire.Walk(b, func(f wire.Field) error {
		switch f.Num {
		case fieldMetaSize:
			m.Size = f.Varint
		case fieldMetaData:
			v, err := f.Uint(math.MaxUint8)
			if err != nil {
				return err
			}
			m.Params.DataSlices = uint8(v)
		case fieldMetaParity:
			v, err := f.Uint(math.MaxUint8)
			if err != nil {
				return err
			}
			m.Params.ParitySlices = uint8(v)
		case fieldMetaSliceHash:
			var h [32]byte
			if err := f.CopyFixed(h[:]); err != nil {
				return err
			}
			m.SliceHashes = append(m.SliceHashes, h)
		}
		return nil
	})
	if err != nil {
		return sliceMetadata{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if err := m.Params.Validate(); err != nil {
		return sliceMetadata{}, fmt.Errorf("%w: %v", wire.ErrDecode, err)
	}
	if len(m.SliceHashes) != m.Params.Total() {
		return sliceMetadata{}, fmt.Errorf("%w: metadata lists %d slices, expected %d", wire.ErrDecode, len(m.SliceHashes), m.Params.Total())
	}
	return m, nil
}

func metadataKey(addr address.Address) []byte {
	return []byte(MetadataPrefix + addr.String())
}

func sliceKey(addr address.Address, i int) []byte {
	return fmt.Appendf(nil, "%s%s_%d", SlicePrefix, addr, i)
}

func loadMetadata(txn *badger.Txn, addr address.Address) (sliceMetadata, error) {
	item, err := txn.Get(metadataKey(addr))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return sliceMetadata{}, notFound(addr)
		}
		return sliceMetadata{}, fmt.Errorf("failed to get metadata: %w", err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return sliceMetadata{}, fmt.Errorf("failed to read metadata value: %w", err)
	}
	return unmarshalMetadata(raw)
}

// loadSlices returns every slice of addr. Missing slices and slices that
// fail their hash are returned as nil.
func loadSlices(txn *badger.Txn, addr address.Address, m sliceMetadata) ([][]byte, int, error) {
	slices := make([][]byte, m.Params.Total())
	damaged := 0
	for i := range slices {
		item, err := txn.Get(sliceKey(addr, i))
		if errors.Is(err, badger.ErrKeyNotFound) {
			damaged++
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to get slice %d: %w", i, err)
		}
		s, err := item.ValueCopy(nil)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read slice %d: %w", i, err)
		}
		if blake3.Sum256(s) != m.SliceHashes[i] {
			damaged++
			continue
		}
		slices[i] = s
	}
	return slices, damaged, nil
}

func (b *Badger) Get(ctx context.Context, addr address.Address) (chunk.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		m      sliceMetadata
		slices [][]byte
	)
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		if m, err = loadMetadata(txn, addr); err != nil {
			return err
		}
		slices, _, err = loadSlices(txn, addr, m)
		return err
	})
	if err != nil {
		return nil, err
	}

	raw, err := erasure.Join(slices, m.Params, int(m.Size))
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", addr, err)
	}
	rec, err := chunk.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", addr, err)
	}
	if rec.Address() != addr {
		return nil, fmt.Errorf("%w: stored chunk %s hashes to %s", wire.ErrDecode, addr, rec.Address())
	}
	return rec, nil
}

func (b *Badger) Put(ctx context.Context, rec chunk.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPut(rec, b.limit); err != nil {
		return err
	}
	addr := rec.Address()
	raw := chunk.Marshal(rec)

	slices, err := erasure.Split(raw, b.params)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", addr, err)
	}
	m := sliceMetadata{Size: uint64(len(raw)), Params: b.params, SliceHashes: make([][32]byte, len(slices))}
	for i, s := range slices {
		m.SliceHashes[i] = blake3.Sum256(s)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(metadataKey(addr))
		if err == nil {
			// Same address means same content.
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check for existing chunk: %w", err)
		}
		if err := txn.Set(metadataKey(addr), marshalMetadata(m)); err != nil {
			return fmt.Errorf("failed to store metadata: %w", err)
		}
		for i, s := range slices {
			if err := txn.Set(sliceKey(addr, i), s); err != nil {
				return fmt.Errorf("failed to store slice %d: %w", i, err)
			}
		}
		return nil
	})
}

func (b *Badger) Has(ctx context.Context, addr address.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(metadataKey(addr))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (b *Badger) Delete(ctx context.Context, addr address.Address, requester ed25519.PublicKey) error {
	rec, err := b.Get(ctx, addr)
	if err != nil {
		return err
	}
	if err := checkDelete(rec, requester); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		m, err := loadMetadata(txn, addr)
		if err != nil {
			return err
		}
		for i := 0; i < m.Params.Total(); i++ {
			if err := txn.Delete(sliceKey(addr, i)); err != nil {
				return fmt.Errorf("failed to delete slice %d: %w", i, err)
			}
		}
		return txn.Delete(metadataKey(addr))
	})
}

func (b *Badger) List(ctx context.Context, vis address.Visibility) ([]address.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(MetadataPrefix + vis.Prefix() + ":")

	var out []address.Address
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			addr, err := address.Parse(strings.TrimPrefix(string(it.Item().Key()), MetadataPrefix))
			if err != nil {
				return fmt.Errorf("malformed metadata key %q: %w", it.Item().Key(), err)
			}
			out = append(out, addr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SliceHealth reports how many slices of addr are missing or corrupted.
func (b *Badger) SliceHealth(ctx context.Context, addr address.Address) (damaged, total int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	err = b.db.View(func(txn *badger.Txn) error {
		m, err := loadMetadata(txn, addr)
		if err != nil {
			return err
		}
		total = m.Params.Total()
		_, damaged, err = loadSlices(txn, addr, m)
		return err
	})
	return damaged, total, err
}

// Close is a no-op; the database belongs to the caller.
func (b *Badger) Close() error { return nil }
