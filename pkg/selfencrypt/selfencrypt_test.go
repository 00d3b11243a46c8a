package selfencrypt

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/datamap"
)

var errMissing = errors.New("missing")

type mapStorage struct {
	mu     sync.Mutex
	chunks map[address.Name][]byte
	puts   int
}

func newMapStorage() *mapStorage {
	return &mapStorage{chunks: make(map[address.Name][]byte)}
}

func (s *mapStorage) Put(_ context.Context, content []byte) (address.Name, error) {
	name := address.PublishedName(content)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[name] = bytes.Clone(content)
	s.puts++
	return name, nil
}

func (s *mapStorage) Get(_ context.Context, name address.Name) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[name]
	if !ok {
		return nil, errMissing
	}
	return bytes.Clone(c), nil
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, opts := range []Options{
		{},
		{Compression: datamap.CompressionZstd},
		{Compression: datamap.CompressionLZMA, Chunker: "size-65536"},
		{Chunker: "size-4096", Concurrency: 2},
	} {
		for _, size := range []int{0, 100, MinEncryptableSize, 700 * 1024} {
			storage := newMapStorage()
			enc, err := New(storage, opts)
			require.NoError(t, err)

			data := randomBytes(t, size)
			m, err := enc.Encrypt(ctx, data)
			require.NoError(t, err)
			assert.Equal(t, uint64(size), m.Len())
			assert.Equal(t, size < MinEncryptableSize, m.IsInline())

			out, err := enc.Decrypt(ctx, m)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, out), "chunker %q compression %s size %d", opts.Chunker, opts.Compression, size)
		}
	}
}

func TestEncryptIsConvergent(t *testing.T) {
	ctx := context.Background()
	storage := newMapStorage()
	enc, err := New(storage, Options{Chunker: "size-8192", Compression: datamap.CompressionZstd})
	require.NoError(t, err)

	data := randomBytes(t, 64*1024)
	first, err := enc.Encrypt(ctx, data)
	require.NoError(t, err)
	stored := len(storage.chunks)

	second, err := enc.Encrypt(ctx, data)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
	assert.Equal(t, stored, len(storage.chunks), "identical input must deduplicate")

	for _, sealed := range storage.chunks {
		assert.False(t, bytes.Contains(data, sealed[:64]), "stored chunk must not contain clear text")
	}
}

func TestDescriptorSizeDependsOnChunkCount(t *testing.T) {
	ctx := context.Background()
	enc, err := New(newMapStorage(), Options{Chunker: "size-4096"})
	require.NoError(t, err)

	a, err := enc.Encrypt(ctx, randomBytes(t, 40*4096))
	require.NoError(t, err)
	b, err := enc.Encrypt(ctx, bytes.Repeat([]byte{7}, 40*4096))
	require.NoError(t, err)

	assert.Len(t, a.Chunks, 40)
	assert.Len(t, datamap.Marshal(a), len(datamap.Marshal(b)))
}

func TestTamperedChunkIsRejected(t *testing.T) {
	ctx := context.Background()
	storage := newMapStorage()
	enc, err := New(storage, Options{Chunker: "size-4096"})
	require.NoError(t, err)

	m, err := enc.Encrypt(ctx, randomBytes(t, 5*4096))
	require.NoError(t, err)

	name := m.Chunks[2].Name
	storage.chunks[name][10] ^= 0x01

	_, err = enc.Decrypt(ctx, m)
	assert.ErrorIs(t, err, ErrCorruptChunk)

	delete(storage.chunks, name)
	_, err = enc.Decrypt(ctx, m)
	assert.ErrorIs(t, err, errMissing)
}

func TestWrongSourceSizeIsRejected(t *testing.T) {
	ctx := context.Background()
	for _, comp := range []datamap.Compression{datamap.CompressionNone, datamap.CompressionZstd} {
		enc, err := New(newMapStorage(), Options{Chunker: "size-4096", Compression: comp})
		require.NoError(t, err)

		m, err := enc.Encrypt(ctx, randomBytes(t, 4*4096))
		require.NoError(t, err)

		for _, size := range []uint64{1 << 20, 100} {
			tampered := m
			tampered.Chunks = append([]datamap.ChunkDetails(nil), m.Chunks...)
			tampered.Chunks[0].SourceSize = size

			_, err = enc.Decrypt(ctx, tampered)
			assert.ErrorIs(t, err, ErrCorruptChunk, "%s size %d", comp, size)

			assert.NotPanics(t, func() {
				_, err = enc.ReadAt(ctx, tampered, 0, tampered.Len())
			})
			assert.ErrorIs(t, err, ErrCorruptChunk, "%s size %d", comp, size)
		}
	}
}

func TestReadAt(t *testing.T) {
	ctx := context.Background()
	enc, err := New(newMapStorage(), Options{Chunker: "size-4096"})
	require.NoError(t, err)

	data := randomBytes(t, 10*4096+123)
	m, err := enc.Encrypt(ctx, data)
	require.NoError(t, err)

	for _, r := range []struct{ offset, length uint64 }{
		{0, 10},
		{4090, 20},
		{4096, 4096},
		{3 * 4096, 5*4096 + 7},
		{uint64(len(data)) - 5, 100},
		{uint64(len(data)), 10},
	} {
		got, err := enc.ReadAt(ctx, m, r.offset, r.length)
		require.NoError(t, err)
		end := min(r.offset+r.length, uint64(len(data)))
		assert.Equal(t, data[r.offset:end], got, "offset %d length %d", r.offset, r.length)
	}

	_, err = enc.ReadAt(ctx, m, uint64(len(data))+1, 1)
	assert.Error(t, err)

	inline := datamap.DataMap{Content: []byte("hello world")}
	got, err := enc.ReadAt(ctx, inline, 6, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(newMapStorage(), Options{Chunker: "nonsense-1"})
	assert.Error(t, err)

	_, err = New(newMapStorage(), Options{Compression: 42})
	assert.Error(t, err)

	assert.NoError(t, ValidateChunker(""))
	assert.NoError(t, ValidateChunker("size-1024"))
}
