// Package encoding implements the two variant wrapper stored in every chunk
// record built by the packing engine. A wrapped buffer either is the payload
// (Literal) or describes where the payload can be reassembled from
// (Descriptor).
package encoding

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/i5heu/ouroboros-idata/pkg/datamap"
	"github.com/i5heu/ouroboros-idata/pkg/wire"
)

// Kind tells the two variants apart.
type Kind uint8

const (
	Literal    Kind = 1
	Descriptor Kind = 2
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Descriptor:
		return "descriptor"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

const (
	fieldLiteral    protowire.Number = 1
	fieldDescriptor protowire.Number = 2
)

// Value is a decoded wrapper. Exactly one of Literal or Descriptor is meaningful, selected by Kind.
type Value struct {
	Kind       Kind
	Literal    []byte
	Descriptor datamap.DataMap
}

// EncodeLiteral wraps a final payload.
func EncodeLiteral(b []byte) []byte {
	return wire.AppendBytes(make([]byte, 0, wire.SizeBytes(fieldLiteral, len(b))), fieldLiteral, b)
}

// EncodeDescriptor wraps a data map.
func EncodeDescriptor(m datamap.DataMap) []byte {
	return wire.AppendBytes(nil, fieldDescriptor, datamap.Marshal(m))
}

// Decode reads either variant. Anything other than exactly one known variant
// is a decode error.
func Decode(b []byte) (Value, error) {
	var (
		v     Value
		count int
	)
	err := wire.Walk(b, func(f wire.Field) error {
		switch f.Num {
		case fieldLiteral:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			count++
			v.Kind = Literal
			v.Literal = bytes.Clone(f.Bytes)
			if v.Literal == nil {
				v.Literal = []byte{}
			}
		case fieldDescriptor:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			count++
			m, err := datamap.Unmarshal(f.Bytes)
			if err != nil {
				return fmt.Errorf("descriptor: %w", err)
			}
			v.Kind = Descriptor
			v.Descriptor = m
		}
		return nil
	})
	if err != nil {
		return Value{}, err
	}
	if count != 1 {
		return Value{}, fmt.Errorf("%w: expected exactly one variant, found %d", wire.ErrDecode, count)
	}
	return v, nil
}
