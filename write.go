package ouroborosidata

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
	"github.com/i5heu/ouroboros-idata/pkg/secretbox"
)

// Create packs value into a root record without submitting it. The chunks
// holding the value are written as a side effect.
func (s *Store) Create(ctx context.Context, value []byte, vis address.Visibility, key *secretbox.Key) (chunk.Record, error) {
	rec, err := s.engine.Create(ctx, value, vis, key)
	if err != nil {
		log.WithFields(logrus.Fields{"size": len(value), "visibility": vis}).WithError(err).Error("Failed to create value")
		return nil, fmt.Errorf("failed to create value: %w", err)
	}
	return rec, nil
}

// Put submits a root record produced by Create.
func (s *Store) Put(ctx context.Context, rec chunk.Record) error {
	if err := s.PutChunk(ctx, rec); err != nil {
		log.WithField("address", rec.Address().String()).WithError(err).Error("Failed to write chunk")
		return fmt.Errorf("failed to put chunk: %w", err)
	}
	log.WithField("address", rec.Address().String()).Debug("Successfully wrote chunk")
	return nil
}

// Store creates and submits value, returning the address to read it back from.
func (s *Store) Store(ctx context.Context, value []byte, vis address.Visibility, key *secretbox.Key) (address.Address, error) {
	rec, err := s.Create(ctx, value, vis, key)
	if err != nil {
		return address.Address{}, err
	}
	if err := s.Put(ctx, rec); err != nil {
		return address.Address{}, err
	}
	return rec.Address(), nil
}
