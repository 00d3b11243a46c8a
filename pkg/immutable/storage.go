package immutable

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
)

// Client is the narrow network capability the engine needs.
type Client interface {
	// OwnerKey is attached to every restricted chunk the client creates.
	OwnerKey() ed25519.PublicKey
	GetChunk(ctx context.Context, addr address.Address) (chunk.Record, error)
	PutChunk(ctx context.Context, rec chunk.Record) error
}

// SelfEncryptionStorage lets the content encryptor read and write chunks of a
// single visibility through a Client.
type SelfEncryptionStorage struct {
	client       Client
	visibility   address.Visibility
	maxChunkSize int
}

// NewSelfEncryptionStorage scopes client to vis. Chunks larger than
// maxChunkSize once wrapped in a record are refused before they reach the client.
func NewSelfEncryptionStorage(client Client, vis address.Visibility, maxChunkSize int) *SelfEncryptionStorage {
	return &SelfEncryptionStorage{client: client, visibility: vis, maxChunkSize: maxChunkSize}
}

// Put stores content as a chunk and returns its name. Storing content that
// already exists is not an error.
func (s *SelfEncryptionStorage) Put(ctx context.Context, content []byte) (address.Name, error) {
	var owner ed25519.PublicKey
	if s.visibility == address.Restricted {
		owner = s.client.OwnerKey()
	}
	rec, err := chunk.New(s.visibility, content, owner)
	if err != nil {
		return address.Name{}, err
	}
	if !chunk.ValidateSize(rec, s.maxChunkSize) {
		return address.Name{}, fmt.Errorf("%w: encrypted chunk record is %d bytes, limit is %d",
			ErrSizeInvariant, chunk.SerializedSize(rec), s.maxChunkSize)
	}
	if err := s.client.PutChunk(ctx, rec); err != nil && !errors.Is(err, chunk.ErrAlreadyExists) {
		return address.Name{}, err
	}
	return rec.Name(), nil
}

// Get fetches the chunk called name from the scoped namespace.
func (s *SelfEncryptionStorage) Get(ctx context.Context, name address.Name) ([]byte, error) {
	addr := address.Address{Visibility: s.visibility, Name: name}
	rec, err := s.client.GetChunk(ctx, addr)
	if err != nil {
		return nil, err
	}
	if err := checkRecord(addr, rec); err != nil {
		return nil, err
	}
	return rec.Value(), nil
}

// checkRecord makes sure a fetched record really lives at addr.
func checkRecord(addr address.Address, rec chunk.Record) error {
	if rec.Visibility() != addr.Visibility {
		return fmt.Errorf("%w: asked for %s, got a %s chunk", ErrVisibilityMismatch, addr, rec.Visibility())
	}
	if rec.Name() != addr.Name {
		return fmt.Errorf("%w: chunk fetched for %s hashes to %s", ErrDecode, addr, rec.Name())
	}
	return nil
}
