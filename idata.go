// Package ouroborosidata is a local immutable data store. Values of any size
// are self-encrypted into content addressed chunks, packed into records that
// respect the network chunk size limit and kept in BadgerDB as Reed-Solomon
// slices.
package ouroborosidata

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
	"github.com/i5heu/ouroboros-idata/pkg/chunkstore"
	"github.com/i5heu/ouroboros-idata/pkg/immutable"
	"github.com/i5heu/ouroboros-idata/pkg/mdata"
	"github.com/i5heu/ouroboros-idata/pkg/nfs"
	"github.com/i5heu/ouroboros-idata/pkg/secretbox"
	"github.com/i5heu/ouroboros-idata/pkg/spaceInformations"
)

var log *logrus.Logger

type Store struct {
	badgerDB     *badger.DB
	chunks       chunkstore.Store
	slices       *chunkstore.Badger
	engine       *immutable.Engine
	owner        ed25519.PrivateKey
	config       Config
	readCounter  uint64
	writeCounter uint64
	stop         chan struct{}
}

// Init opens the store described by config. owner signs for every restricted
// chunk the store creates and is the only key allowed to delete them.
func Init(owner ed25519.PrivateKey, config *Config) (*Store, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}

	log = config.Logger

	if len(owner) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("owner key must be %d bytes, got %d", ed25519.PrivateKeySize, len(owner))
	}

	err := config.checkConfig()
	if err != nil {
		return nil, fmt.Errorf("error checking config for IDataStore: %w", err)
	}

	opts := badger.DefaultOptions(config.Paths[0])
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100 // Set max size of each value log file to 100MB
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		log.WithError(err).Error("Failed to open badger database")
		return nil, err
	}

	if err := spaceInformations.DisplayDiskUsage(log, config.Paths); err != nil {
		log.WithError(err).Warn("Disk usage unavailable")
	}

	s := &Store{
		badgerDB: db,
		owner:    owner,
		config:   *config,
		stop:     make(chan struct{}),
	}
	if err := s.wire(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) wire() error {
	slices, err := chunkstore.NewBadger(s.badgerDB, s.config.erasureParams(), s.config.MaxChunkSize)
	if err != nil {
		return err
	}
	s.slices = slices
	s.chunks = slices
	if s.config.CacheEntries > 0 {
		if s.chunks, err = chunkstore.NewCache(slices, s.config.CacheEntries); err != nil {
			return err
		}
	}

	encOpts, err := s.config.encryptorOptions()
	if err != nil {
		return err
	}
	s.engine, err = immutable.New(s,
		immutable.WithMaxChunkSize(s.config.MaxChunkSize),
		immutable.WithEncryptorOptions(encOpts),
		immutable.WithLogger(log),
	)
	return err
}

// OwnerKey returns the public half of the owner key.
func (s *Store) OwnerKey() ed25519.PublicKey {
	return s.owner.Public().(ed25519.PublicKey)
}

// GetChunk reads a single chunk record.
func (s *Store) GetChunk(ctx context.Context, addr address.Address) (chunk.Record, error) {
	atomic.AddUint64(&s.readCounter, 1)
	return s.chunks.Get(ctx, addr)
}

// PutChunk stores a single chunk record.
func (s *Store) PutChunk(ctx context.Context, rec chunk.Record) error {
	atomic.AddUint64(&s.writeCounter, 1)
	return s.chunks.Put(ctx, rec)
}

// DeleteChunk removes a restricted chunk owned by this store's owner.
func (s *Store) DeleteChunk(ctx context.Context, addr address.Address) error {
	return s.chunks.Delete(ctx, addr, s.OwnerKey())
}

// Engine exposes the packing engine bound to this store.
func (s *Store) Engine() *immutable.Engine {
	return s.engine
}

// Directory opens the versioned directory called name. With key set, entry
// names, entry values and file contents are encrypted under it.
func (s *Store) Directory(name string, key *secretbox.Key) (*nfs.Dir, error) {
	entries, err := mdata.NewBadger(s.badgerDB, name)
	if err != nil {
		return nil, err
	}
	return nfs.NewDir(entries, s.engine, s, key), nil
}

// Close stops background work and closes the database.
func (s *Store) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}

	var result *multierror.Error
	if err := s.chunks.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing chunk store: %w", err))
	}
	if err := s.badgerDB.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing badger: %w", err))
	}
	return result.ErrorOrNil()
}
