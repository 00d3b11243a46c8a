// Package chunkstore holds chunk records on behalf of a client. Stores keep
// the published and restricted namespaces apart, refuse records over the size
// limit and enforce the deletion policy of each namespace.
package chunkstore

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
)

// Store is implemented by Memory, Badger and Cache.
type Store interface {
	Get(ctx context.Context, addr address.Address) (chunk.Record, error)
	// Put stores rec under rec.Address(). Putting an identical record again succeeds.
	Put(ctx context.Context, rec chunk.Record) error
	Has(ctx context.Context, addr address.Address) (bool, error)
	// Delete removes a restricted chunk on behalf of requester, who must own it.
	// Published chunks can never be deleted.
	Delete(ctx context.Context, addr address.Address, requester ed25519.PublicKey) error
	List(ctx context.Context, vis address.Visibility) ([]address.Address, error)
	Close() error
}

func checkPut(rec chunk.Record, limit int) error {
	if !rec.Visibility().Valid() {
		return fmt.Errorf("unknown visibility %d", rec.Visibility())
	}
	if size := chunk.SerializedSize(rec); size > limit {
		return fmt.Errorf("%w: %d bytes, limit is %d", chunk.ErrTooLarge, size, limit)
	}
	return nil
}

// checkDelete applies the namespace deletion policy to the stored record.
func checkDelete(rec chunk.Record, requester ed25519.PublicKey) error {
	res, ok := rec.(*chunk.Restricted)
	if !ok {
		return fmt.Errorf("%w: published chunks cannot be deleted", chunk.ErrPermissionDenied)
	}
	if !bytes.Equal(res.Owner(), requester) {
		return fmt.Errorf("%w: chunk %s belongs to another owner", chunk.ErrPermissionDenied, rec.Address())
	}
	return nil
}

// sameRecord reports whether two records with the same address are byte identical.
func sameRecord(a, b chunk.Record) bool {
	return bytes.Equal(chunk.Marshal(a), chunk.Marshal(b))
}

func notFound(addr address.Address) error {
	return fmt.Errorf("%w: %s", chunk.ErrNotFound, addr)
}
