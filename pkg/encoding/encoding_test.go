package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/i5heu/ouroboros-idata/pkg/datamap"
	"github.com/i5heu/ouroboros-idata/pkg/wire"
)

func genDataMap(t *rapid.T) datamap.DataMap {
	m := datamap.DataMap{
		Compression: rapid.SampledFrom([]datamap.Compression{datamap.CompressionNone, datamap.CompressionZstd, datamap.CompressionLZMA}).Draw(t, "compression"),
	}
	if rapid.Bool().Draw(t, "inline") {
		m.Content = rapid.SliceOf(rapid.Byte()).Draw(t, "content")
		return m
	}
	n := rapid.IntRange(1, 16).Draw(t, "chunkCount")
	for i := 0; i < n; i++ {
		c := datamap.ChunkDetails{Index: uint32(i), SourceSize: rapid.Uint64().Draw(t, "sourceSize")}
		copy(c.PreHash[:], rapid.SliceOfN(rapid.Byte(), datamap.HashSize, datamap.HashSize).Draw(t, "preHash"))
		copy(c.Name[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "name"))
		m.Chunks = append(m.Chunks, c)
	}
	return m
}

func TestDecodeLiteralProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.SliceOf(rapid.Byte()).Draw(t, "literal")
		v, err := Decode(EncodeLiteral(b))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if v.Kind != Literal || !bytes.Equal(v.Literal, b) {
			t.Fatalf("got %v %x, want literal %x", v.Kind, v.Literal, b)
		}
	})
}

func TestDecodeDescriptorProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := genDataMap(t)
		v, err := Decode(EncodeDescriptor(m))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if v.Kind != Descriptor || !v.Descriptor.Equal(m) {
			t.Fatalf("got %v %+v, want descriptor %+v", v.Kind, v.Descriptor, m)
		}
	})
}

func TestDecodeNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.SliceOf(rapid.Byte()).Draw(t, "garbage")
		_, _ = Decode(b)
	})
}

func TestDecodeRejectsMalformed(t *testing.T) {
	literal := EncodeLiteral([]byte("payload"))
	descriptor := EncodeDescriptor(datamap.DataMap{Content: []byte("x")})

	for name, input := range map[string][]byte{
		"empty":             nil,
		"truncated":         literal[:len(literal)-2],
		"two variants":      append(append([]byte{}, literal...), descriptor...),
		"bad descriptor":    wire.AppendBytes(nil, fieldDescriptor, []byte{0xff}),
		"unknown only":      wire.AppendBytes(nil, 9, []byte("x")),
		"literal as int":    wire.AppendVarint(nil, fieldLiteral, 1),
		"sealed ciphertext": {0x01, 0x55, 0x66},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(input)
			assert.ErrorIs(t, err, wire.ErrDecode)
		})
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b := wire.AppendBytes(EncodeLiteral([]byte("v")), 15, []byte("from a newer writer"))
	v, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, Literal, v.Kind)
	assert.Equal(t, []byte("v"), v.Literal)
}
