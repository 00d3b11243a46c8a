package ouroborosidata

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/secretbox"
)

// ValidationResult captures the outcome of validating a single chunk.
type ValidationResult struct {
	Address       address.Address
	AddressBase64 string
	DamagedSlices int // Slices that had to be reconstructed from parity
	Err           error
}

// Passed reports whether the validation succeeded.
func (r ValidationResult) Passed() bool {
	return r.Err == nil
}

// ValidateAddress verifies that the chunk at addr can be reconstructed and
// still hashes to its address. It returns the number of damaged slices that
// parity had to cover.
func (s *Store) ValidateAddress(ctx context.Context, addr address.Address) (int, error) {
	damaged, _, err := s.slices.SliceHealth(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect slices: %w", err)
	}
	// Read through the slice store, not the cache, so the check hits disk.
	rec, err := s.slices.Get(ctx, addr)
	if err != nil {
		return damaged, fmt.Errorf("failed to read chunk for validation: %w", err)
	}
	if rec.Address() != addr {
		return damaged, fmt.Errorf("content hash mismatch: expected %s, got %s", addr, rec.Address())
	}
	return damaged, nil
}

// ValidateValue verifies that the whole value behind the root record at addr
// can be read back.
func (s *Store) ValidateValue(ctx context.Context, addr address.Address, key *secretbox.Key) error {
	if _, err := s.engine.GetValue(ctx, addr, key); err != nil {
		return fmt.Errorf("failed to read value for validation: %w", err)
	}
	return nil
}

// ValidateAll checks every stored chunk of both namespaces. The returned error
// aggregates every failed chunk; results are returned either way.
func (s *Store) ValidateAll(ctx context.Context) ([]ValidationResult, error) {
	var results []ValidationResult
	var failed *multierror.Error

	for _, vis := range []address.Visibility{address.Published, address.Restricted} {
		addrs, err := s.ListAddresses(ctx, vis)
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses for validation: %w", err)
		}
		for _, addr := range addrs {
			res := ValidationResult{
				Address:       addr,
				AddressBase64: addr.Base64(),
			}
			res.DamagedSlices, res.Err = s.ValidateAddress(ctx, addr)
			if res.Err != nil {
				failed = multierror.Append(failed, fmt.Errorf("%s: %w", addr, res.Err))
			}
			results = append(results, res)
		}
	}

	return results, failed.ErrorOrNil()
}
