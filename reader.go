package ouroborosidata

import (
	"context"
	"fmt"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/secretbox"
)

// GetValue reads back the value stored at addr. key must match the key the
// value was created with.
func (s *Store) GetValue(ctx context.Context, addr address.Address, key *secretbox.Key) ([]byte, error) {
	value, err := s.engine.GetValue(ctx, addr, key)
	if err != nil {
		log.Errorf("Failed to read value %s: %v", addr, err)
		return nil, fmt.Errorf("failed to read value: %w", err)
	}

	log.Debugf("Successfully read value %s", addr)
	return value, nil
}

// GetRange reads length bytes of the value at addr starting at offset,
// fetching only the chunks that overlap the range.
func (s *Store) GetRange(ctx context.Context, addr address.Address, key *secretbox.Key, offset, length uint64) ([]byte, error) {
	value, err := s.engine.GetRange(ctx, addr, key, offset, length)
	if err != nil {
		log.Errorf("Failed to read range of %s: %v", addr, err)
		return nil, fmt.Errorf("failed to read range: %w", err)
	}
	return value, nil
}
