package selfencrypt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-idata/pkg/datamap"
)

func TestMaxChunkLen(t *testing.T) {
	cases := map[string]int{
		"":                           512 << 10,
		"buzhash":                    512 << 10,
		"default":                    256 << 10,
		"size-4096":                  4096,
		"rabin":                      384 << 10,
		"rabin-1024":                 1536,
		"rabin-512-1024-4096":        4096,
		"rabin-min:16-avg:64-max:99": 99,
	}
	for spec, want := range cases {
		got, err := MaxChunkLen(spec)
		require.NoError(t, err, spec)
		assert.Equal(t, want, got, spec)
	}

	_, err := MaxChunkLen("nonsense-1")
	assert.Error(t, err)
}

func TestSealedChunksStayWithinBound(t *testing.T) {
	ctx := context.Background()
	for _, comp := range []datamap.Compression{datamap.CompressionNone, datamap.CompressionZstd, datamap.CompressionLZMA} {
		opts := Options{Chunker: "size-8192", Compression: comp}
		bound, err := opts.MaxSealedChunk()
		require.NoError(t, err)

		storage := newMapStorage()
		enc, err := New(storage, opts)
		require.NoError(t, err)
		_, err = enc.Encrypt(ctx, randomBytes(t, 64*1024))
		require.NoError(t, err)

		for _, sealed := range storage.chunks {
			assert.LessOrEqual(t, len(sealed), bound, "compression %s", comp)
		}
	}
}
