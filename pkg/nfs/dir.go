package nfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
	"github.com/i5heu/ouroboros-idata/pkg/immutable"
	"github.com/i5heu/ouroboros-idata/pkg/mdata"
	"github.com/i5heu/ouroboros-idata/pkg/secretbox"
)

var ErrFileNotFound = errors.New("file not found")

// ChunkStore submits and removes root chunks.
type ChunkStore interface {
	PutChunk(ctx context.Context, rec chunk.Record) error
	DeleteChunk(ctx context.Context, addr address.Address) error
}

// Dir is a directory of files. With a key set, entry keys are keyed hashes of
// the file names and entry values are sealed, and file contents are created
// under the same key.
type Dir struct {
	entries mdata.Entries
	engine  *immutable.Engine
	chunks  ChunkStore
	key     *secretbox.Key
	now     func() time.Time
}

func NewDir(entries mdata.Entries, engine *immutable.Engine, chunks ChunkStore, key *secretbox.Key) *Dir {
	return &Dir{entries: entries, engine: engine, chunks: chunks, key: key, now: time.Now}
}

func (d *Dir) entryKey(name string) []byte {
	if d.key == nil {
		return []byte(name)
	}
	h, err := blake3.NewKeyed(d.key[:])
	if err != nil {
		panic("nfs: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	h.Write([]byte(name))
	return h.Sum(nil)
}

func (d *Dir) encode(f File) ([]byte, error) {
	b, err := f.Encode()
	if err != nil {
		return nil, err
	}
	if d.key == nil {
		return b, nil
	}
	return secretbox.Encrypt(b, d.key)
}

func (d *Dir) decode(b []byte) (File, error) {
	if d.key != nil {
		var err error
		if b, err = secretbox.Decrypt(b, d.key); err != nil {
			return File{}, err
		}
	}
	return DecodeFile(b)
}

func fileError(name string, err error) error {
	if errors.Is(err, mdata.ErrNoSuchEntry) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return err
}

func (d *Dir) resolve(ctx context.Context, name string, v Version) (uint64, error) {
	if !v.next {
		return v.n, nil
	}
	current, _, err := d.Fetch(ctx, name)
	if err != nil {
		return 0, err
	}
	return v.successor(current), nil
}

// Insert adds a new entry for f.Name.
func (d *Dir) Insert(ctx context.Context, f File) error {
	b, err := d.encode(f)
	if err != nil {
		return err
	}
	return d.entries.Insert(ctx, d.entryKey(f.Name), b)
}

// Fetch returns the current version and metadata of name.
func (d *Dir) Fetch(ctx context.Context, name string) (uint64, File, error) {
	v, err := d.entries.Get(ctx, d.entryKey(name))
	if err != nil {
		return 0, File{}, fileError(name, err)
	}
	f, err := d.decode(v.Content)
	if err != nil {
		return 0, File{}, fmt.Errorf("entry %s: %w", name, err)
	}
	return v.Version, f, nil
}

// Update replaces the entry of f.Name and returns the version written.
func (d *Dir) Update(ctx context.Context, f File, version Version) (uint64, error) {
	n, err := d.resolve(ctx, f.Name, version)
	if err != nil {
		return 0, err
	}
	b, err := d.encode(f)
	if err != nil {
		return 0, err
	}
	if err := d.entries.Update(ctx, d.entryKey(f.Name), b, n); err != nil {
		return 0, fileError(f.Name, err)
	}
	return n, nil
}

// Delete removes name. The root chunk of a restricted file is deleted too;
// published chunks stay on the network.
func (d *Dir) Delete(ctx context.Context, name string, version Version) error {
	current, f, err := d.Fetch(ctx, name)
	if err != nil {
		return err
	}
	if err := d.entries.Delete(ctx, d.entryKey(name), version.successor(current)); err != nil {
		return fileError(name, err)
	}
	if f.DataMapName.Visibility == address.Restricted {
		if err := d.chunks.DeleteChunk(ctx, f.DataMapName); err != nil && !errors.Is(err, chunk.ErrNotFound) {
			return fmt.Errorf("deleting root chunk of %s: %w", name, err)
		}
	}
	return nil
}

// Write stores content as a new immutable value and points name at it,
// creating the entry or moving it to the next version.
func (d *Dir) Write(ctx context.Context, name string, content []byte, vis address.Visibility, userMetadata []byte) (File, error) {
	rec, err := d.engine.Create(ctx, content, vis, d.key)
	if err != nil {
		return File{}, err
	}
	if err := d.chunks.PutChunk(ctx, rec); err != nil {
		return File{}, err
	}

	now := d.now().UTC()
	f := File{
		Name:         name,
		DataMapName:  rec.Address(),
		Size:         uint64(len(content)),
		Created:      now,
		Modified:     now,
		UserMetadata: userMetadata,
	}

	_, old, err := d.Fetch(ctx, name)
	switch {
	case errors.Is(err, ErrFileNotFound):
		return f, d.Insert(ctx, f)
	case err != nil:
		return File{}, err
	}
	f.Created = old.Created
	if _, err := d.Update(ctx, f, GetNext()); err != nil {
		return File{}, err
	}
	return f, nil
}

// Read returns the whole content of name.
func (d *Dir) Read(ctx context.Context, name string) ([]byte, error) {
	_, f, err := d.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	return d.engine.GetValue(ctx, f.DataMapName, d.key)
}

// ReadRange returns up to length bytes of name starting at offset.
func (d *Dir) ReadRange(ctx context.Context, name string, offset, length uint64) ([]byte, error) {
	_, f, err := d.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	return d.engine.GetRange(ctx, f.DataMapName, d.key, offset, length)
}

// List returns every file in the directory.
func (d *Dir) List(ctx context.Context) ([]File, error) {
	keys, err := d.entries.Keys(ctx)
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(keys))
	for _, k := range keys {
		v, err := d.entries.Get(ctx, k)
		if errors.Is(err, mdata.ErrNoSuchEntry) {
			continue
		}
		if err != nil {
			return nil, err
		}
		f, err := d.decode(v.Content)
		if err != nil {
			return nil, fmt.Errorf("entry %x: %w", k, err)
		}
		files = append(files, f)
	}
	return files, nil
}
