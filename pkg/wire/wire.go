// Package wire holds the protobuf wire helpers shared by every on-disk and
// on-network format of ouroboros-idata. Messages are written by hand with
// protowire so the byte layout stays stable across releases; decoders skip
// unknown fields so newer writers remain readable.
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrDecode is returned for malformed or truncated input.
var ErrDecode = errors.New("decode error")

// Field is a single decoded field. Bytes aliases the input buffer.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Bytes  []byte
	Varint uint64
}

// Walk calls fn for every bytes or varint field in b, in order. Fields of
// other wire types are skipped. Any framing error is reported as ErrDecode.
func Walk(b []byte, fn func(f Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrDecode, num, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(Field{Num: num, Type: typ, Bytes: v}); err != nil {
				return err
			}
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrDecode, num, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(Field{Num: num, Type: typ, Varint: v}); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrDecode, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// AppendBytes appends a length-delimited field. It is written even when v is
// empty so that presence survives a round trip.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendVarint appends a varint field.
func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// SizeBytes returns the encoded size of a length-delimited field holding n bytes.
func SizeBytes(num protowire.Number, n int) int {
	return protowire.SizeTag(num) + protowire.SizeBytes(n)
}

// SizeVarint returns the encoded size of a varint field.
func SizeVarint(num protowire.Number, v uint64) int {
	return protowire.SizeTag(num) + protowire.SizeVarint(v)
}

// Expect checks that a field has the wanted wire type.
func (f Field) Expect(typ protowire.Type) error {
	if f.Type != typ {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrDecode, f.Num, f.Type, typ)
	}
	return nil
}

// Uint returns a varint field, rejecting values above limit so narrower
// integer types never truncate.
func (f Field) Uint(limit uint64) (uint64, error) {
	if err := f.Expect(protowire.VarintType); err != nil {
		return 0, err
	}
	if f.Varint > limit {
		return 0, fmt.Errorf("%w: field %d value %d exceeds %d", ErrDecode, f.Num, f.Varint, limit)
	}
	return f.Varint, nil
}

// CopyFixed copies a length-delimited field into dst, which must match its length exactly.
func (f Field) CopyFixed(dst []byte) error {
	if err := f.Expect(protowire.BytesType); err != nil {
		return err
	}
	if len(f.Bytes) != len(dst) {
		return fmt.Errorf("%w: field %d is %d bytes, want %d", ErrDecode, f.Num, len(f.Bytes), len(dst))
	}
	copy(dst, f.Bytes)
	return nil
}
