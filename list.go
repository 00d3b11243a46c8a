package ouroborosidata

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
	"github.com/i5heu/ouroboros-idata/pkg/datamap"
	"github.com/i5heu/ouroboros-idata/pkg/secretbox"
)

// ValueInfo describes a stored root record and the value behind it.
type ValueInfo struct {
	Address       address.Address
	RecordSize    int                 // Serialized size of the root record
	ClearTextSize uint64              // Size of the original value
	Inline        bool                // Value is small enough to live inside the data map
	NumChunks     int                 // Number of self-encrypted chunks
	Compression   datamap.Compression // Per chunk compression
	Slices        int                 // Reed-Solomon slices of the root record
	DamagedSlices int                 // Missing or corrupt slices of the root record
}

// ListAddresses returns every stored chunk address of vis. This includes the
// inner chunks of packed values, not only root records.
func (s *Store) ListAddresses(ctx context.Context, vis address.Visibility) ([]address.Address, error) {
	addrs, err := s.chunks.List(ctx, vis)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s chunks: %w", vis, err)
	}
	return addrs, nil
}

// Exists reports whether a chunk is stored at addr.
func (s *Store) Exists(ctx context.Context, addr address.Address) (bool, error) {
	atomic.AddUint64(&s.readCounter, 1)
	return s.chunks.Has(ctx, addr)
}

// GetValueInfo unpacks the root record at addr far enough to describe the
// value without reading its chunks.
func (s *Store) GetValueInfo(ctx context.Context, addr address.Address, key *secretbox.Key) (ValueInfo, error) {
	rec, err := s.GetChunk(ctx, addr)
	if err != nil {
		return ValueInfo{}, fmt.Errorf("failed to load root record: %w", err)
	}
	m, err := s.engine.DataMap(ctx, rec, key)
	if err != nil {
		return ValueInfo{}, fmt.Errorf("failed to read data map: %w", err)
	}
	damaged, total, err := s.slices.SliceHealth(ctx, addr)
	if err != nil {
		return ValueInfo{}, fmt.Errorf("failed to inspect slices: %w", err)
	}

	return ValueInfo{
		Address:       addr,
		RecordSize:    chunk.SerializedSize(rec),
		ClearTextSize: m.Len(),
		Inline:        m.IsInline(),
		NumChunks:     len(m.Chunks),
		Compression:   m.Compression,
		Slices:        total,
		DamagedSlices: damaged,
	}, nil
}
