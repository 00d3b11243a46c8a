package datamap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/wire"
)

func genChunks(t *rapid.T) []ChunkDetails {
	n := rapid.IntRange(1, 40).Draw(t, "chunkCount")
	chunks := make([]ChunkDetails, n)
	for i := range chunks {
		chunks[i].Index = uint32(i)
		copy(chunks[i].PreHash[:], rapid.SliceOfN(rapid.Byte(), HashSize, HashSize).Draw(t, "preHash"))
		copy(chunks[i].Name[:], rapid.SliceOfN(rapid.Byte(), address.NameSize, address.NameSize).Draw(t, "name"))
		chunks[i].SourceSize = rapid.Uint64().Draw(t, "sourceSize")
	}
	return chunks
}

// genDataMap produces an arbitrary valid data map.
func genDataMap(t *rapid.T) DataMap {
	m := DataMap{
		Compression: rapid.SampledFrom([]Compression{CompressionNone, CompressionZstd, CompressionLZMA}).Draw(t, "compression"),
	}
	if rapid.Bool().Draw(t, "inline") {
		m.Content = rapid.SliceOf(rapid.Byte()).Draw(t, "content")
	} else {
		m.Chunks = genChunks(t)
	}
	return m
}

func TestMarshalRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := genDataMap(t)
		decoded, err := Unmarshal(Marshal(m))
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !decoded.Equal(m) {
			t.Fatalf("round trip mismatch: %+v != %+v", decoded, m)
		}
	})
}

func TestLen(t *testing.T) {
	assert.Equal(t, uint64(3), DataMap{Content: []byte("abc")}.Len())
	m := DataMap{Chunks: []ChunkDetails{{SourceSize: 10}, {Index: 1, SourceSize: 5}}}
	assert.Equal(t, uint64(15), m.Len())
	assert.False(t, m.IsInline())
	assert.Len(t, m.Names(), 2)
}

func TestUnmarshalRejectsInvalidMaps(t *testing.T) {
	good := DataMap{Chunks: []ChunkDetails{{Index: 0}, {Index: 1}}}
	outOfOrder := DataMap{Chunks: []ChunkDetails{{Index: 1}, {Index: 0}}}

	both := Marshal(good)
	both = wire.AppendBytes(both, fieldContent, []byte("inline"))

	for name, input := range map[string][]byte{
		"empty":          nil,
		"out of order":   Marshal(outOfOrder),
		"both":           both,
		"truncated":      Marshal(good)[:10],
		"compression":    wire.AppendVarint(Marshal(DataMap{Content: []byte("x")}), fieldCompression, 99),
		"short hash":     wire.AppendBytes(nil, fieldChunk, wire.AppendBytes(nil, fieldChunkPreHash, []byte{1})),
		"index overflow": wire.AppendBytes(nil, fieldChunk, wire.AppendVarint(marshalChunk(ChunkDetails{}), fieldChunkIndex, 1<<32)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(input)
			assert.ErrorIs(t, err, wire.ErrDecode)
		})
	}

	_, err := Unmarshal(Marshal(good))
	require.NoError(t, err)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZMA} {
		parsed, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}
