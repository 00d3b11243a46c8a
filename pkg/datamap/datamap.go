// Package datamap describes how a byte stream was split into encrypted chunks
// and how to put it back together.
package datamap

import (
	"bytes"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/wire"
)

// HashSize is the size of a pre-encryption chunk hash.
const HashSize = 32

// Compression identifies the per-chunk compression algorithm. Values are
// persisted inside data maps and must never change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
	CompressionLZMA Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZMA:
		return "lzma"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses the name produced by Compression.String.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "zstd", "":
		return CompressionZstd, nil
	case "lzma":
		return CompressionLZMA, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// ChunkDetails points at one stored chunk.
type ChunkDetails struct {
	Index      uint32         // Position of the chunk in the stream
	PreHash    [HashSize]byte // Hash of the clear chunk before compression and encryption
	Name       address.Name   // Name of the stored encrypted chunk
	SourceSize uint64         // Size of the clear chunk in bytes
}

// DataMap is either inline content (small inputs) or a list of chunks.
type DataMap struct {
	Content     []byte
	Chunks      []ChunkDetails
	Compression Compression
}

// Len returns the size of the described stream.
func (m DataMap) Len() uint64 {
	if len(m.Chunks) == 0 {
		return uint64(len(m.Content))
	}
	var n uint64
	for _, c := range m.Chunks {
		n += c.SourceSize
	}
	return n
}

// IsInline reports whether the stream is held directly in the map.
func (m DataMap) IsInline() bool {
	return len(m.Chunks) == 0
}

// Names returns the names of all referenced chunks in stream order.
func (m DataMap) Names() []address.Name {
	names := make([]address.Name, 0, len(m.Chunks))
	for _, c := range m.Chunks {
		names = append(names, c.Name)
	}
	return names
}

// Equal compares two maps field by field.
func (m DataMap) Equal(o DataMap) bool {
	if m.Compression != o.Compression || !bytes.Equal(m.Content, o.Content) || len(m.Chunks) != len(o.Chunks) {
		return false
	}
	for i := range m.Chunks {
		if m.Chunks[i] != o.Chunks[i] {
			return false
		}
	}
	return true
}

const (
	fieldContent     protowire.Number = 1
	fieldChunk       protowire.Number = 2
	fieldCompression protowire.Number = 3

	fieldChunkIndex      protowire.Number = 1
	fieldChunkPreHash    protowire.Number = 2
	fieldChunkName       protowire.Number = 3
	fieldChunkSourceSize protowire.Number = 4
)

// Marshal serializes the map.
func Marshal(m DataMap) []byte {
	var b []byte
	if m.IsInline() {
		b = wire.AppendBytes(b, fieldContent, m.Content)
	}
	for _, c := range m.Chunks {
		b = wire.AppendBytes(b, fieldChunk, marshalChunk(c))
	}
	if m.Compression != CompressionNone {
		b = wire.AppendVarint(b, fieldCompression, uint64(m.Compression))
	}
	return b
}

func marshalChunk(c ChunkDetails) []byte {
	b := make([]byte, 0, 2*HashSize+24)
	b = wire.AppendVarint(b, fieldChunkIndex, uint64(c.Index))
	b = wire.AppendBytes(b, fieldChunkPreHash, c.PreHash[:])
	b = wire.AppendBytes(b, fieldChunkName, c.Name[:])
	b = wire.AppendVarint(b, fieldChunkSourceSize, c.SourceSize)
	return b
}

// Unmarshal decodes a map and checks that chunk indexes are dense and ordered.
func Unmarshal(b []byte) (DataMap, error) {
	var (
		m          DataMap
		hasContent bool
	)
	err := wire.Walk(b, func(f wire.Field) error {
		switch f.Num {
		case fieldContent:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			m.Content = bytes.Clone(f.Bytes)
			hasContent = true
		case fieldChunk:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			c, err := unmarshalChunk(f.Bytes)
			if err != nil {
				return err
			}
			m.Chunks = append(m.Chunks, c)
		case fieldCompression:
			if err := f.Expect(protowire.VarintType); err != nil {
				return err
			}
			if f.Varint > uint64(CompressionLZMA) {
				return fmt.Errorf("%w: unknown compression %d", wire.ErrDecode, f.Varint)
			}
			m.Compression = Compression(f.Varint)
		}
		return nil
	})
	if err != nil {
		return DataMap{}, err
	}

	if hasContent && len(m.Chunks) > 0 {
		return DataMap{}, fmt.Errorf("%w: data map has both inline content and chunks", wire.ErrDecode)
	}
	if !hasContent && len(m.Chunks) == 0 {
		return DataMap{}, fmt.Errorf("%w: empty data map", wire.ErrDecode)
	}
	for i, c := range m.Chunks {
		if c.Index != uint32(i) {
			return DataMap{}, fmt.Errorf("%w: chunk %d has index %d", wire.ErrDecode, i, c.Index)
		}
	}
	return m, nil
}

func unmarshalChunk(b []byte) (ChunkDetails, error) {
	var (
		c             ChunkDetails
		hasPre, hasNm bool
	)
	err := wire.Walk(b, func(f wire.Field) error {
		switch f.Num {
		case fieldChunkIndex:
			v, err := f.Uint(math.MaxUint32)
			if err != nil {
				return err
			}
			c.Index = uint32(v)
		case fieldChunkPreHash:
			hasPre = true
			return f.CopyFixed(c.PreHash[:])
		case fieldChunkName:
			hasNm = true
			return f.CopyFixed(c.Name[:])
		case fieldChunkSourceSize:
			if err := f.Expect(protowire.VarintType); err != nil {
				return err
			}
			c.SourceSize = f.Varint
		}
		return nil
	})
	if err != nil {
		return ChunkDetails{}, err
	}
	if !hasPre || !hasNm {
		return ChunkDetails{}, fmt.Errorf("%w: chunk details missing hash", wire.ErrDecode)
	}
	return c, nil
}
