// Package chunk defines the immutable record the network stores. A record is
// either Published or Restricted; only the restricted variant carries an owner.
package chunk

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/wire"
)

// MaxChunkSize is the largest serialized record the network accepts.
const MaxChunkSize = 1024*1024 + 10*1024

var (
	ErrNotFound           = errors.New("chunk not found")
	ErrAlreadyExists      = errors.New("chunk already exists")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrVisibilityMismatch = errors.New("visibility mismatch")
	ErrTooLarge           = errors.New("chunk exceeds maximum size")
)

const (
	fieldVisibility protowire.Number = 1
	fieldValue      protowire.Number = 2
	fieldOwner      protowire.Number = 3
)

// Record is a Published or Restricted chunk. The set is closed.
type Record interface {
	Visibility() address.Visibility
	Value() []byte
	Name() address.Name
	Address() address.Address
	isRecord()
}

// Published is a world readable chunk.
type Published struct {
	value []byte
}

// Restricted is a chunk owned by a public key.
type Restricted struct {
	value []byte
	owner ed25519.PublicKey
}

// NewPublished wraps value. The slice is retained.
func NewPublished(value []byte) *Published {
	return &Published{value: value}
}

// NewRestricted wraps value owned by owner. Both slices are retained.
func NewRestricted(value []byte, owner ed25519.PublicKey) *Restricted {
	return &Restricted{value: value, owner: owner}
}

// New builds a record of the given visibility. owner is ignored for published records.
func New(vis address.Visibility, value []byte, owner ed25519.PublicKey) (Record, error) {
	switch vis {
	case address.Published:
		return NewPublished(value), nil
	case address.Restricted:
		if len(owner) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("restricted chunk needs a %d byte owner key, got %d", ed25519.PublicKeySize, len(owner))
		}
		return NewRestricted(value, owner), nil
	default:
		return nil, fmt.Errorf("unknown visibility %d", vis)
	}
}

func (*Published) isRecord()                      {}
func (*Published) Visibility() address.Visibility { return address.Published }
func (p *Published) Value() []byte                { return p.value }
func (p *Published) Name() address.Name           { return address.PublishedName(p.value) }
func (p *Published) Address() address.Address     { return address.Pub(p.Name()) }

func (*Restricted) isRecord()                      {}
func (*Restricted) Visibility() address.Visibility { return address.Restricted }
func (r *Restricted) Value() []byte                { return r.value }
func (r *Restricted) Owner() ed25519.PublicKey     { return r.owner }
func (r *Restricted) Name() address.Name           { return address.RestrictedName(r.owner, r.value) }
func (r *Restricted) Address() address.Address     { return address.Res(r.Name()) }

// SameNamespace reports whether b lives in the same namespace as a: equal
// visibility and, for restricted records, the same owner.
func SameNamespace(a, b Record) bool {
	switch ra := a.(type) {
	case *Published:
		_, ok := b.(*Published)
		return ok
	case *Restricted:
		rb, ok := b.(*Restricted)
		return ok && bytes.Equal(ra.owner, rb.owner)
	default:
		return false
	}
}

// Marshal serializes a record.
func Marshal(r Record) []byte {
	b := make([]byte, 0, SerializedSize(r))
	b = wire.AppendVarint(b, fieldVisibility, uint64(r.Visibility()))
	b = wire.AppendBytes(b, fieldValue, r.Value())
	if res, ok := r.(*Restricted); ok {
		b = wire.AppendBytes(b, fieldOwner, res.owner)
	}
	return b
}

// SerializedSize returns len(Marshal(r)) without allocating.
func SerializedSize(r Record) int {
	n := wire.SizeVarint(fieldVisibility, uint64(r.Visibility()))
	n += wire.SizeBytes(fieldValue, len(r.Value()))
	if res, ok := r.(*Restricted); ok {
		n += wire.SizeBytes(fieldOwner, len(res.owner))
	}
	return n
}

// MaxRecordSize returns the serialized size of the largest record holding a
// value of valueLen bytes. Restricted records are the larger variant.
func MaxRecordSize(valueLen int) int {
	return wire.SizeVarint(fieldVisibility, uint64(address.Restricted)) +
		wire.SizeBytes(fieldValue, valueLen) +
		wire.SizeBytes(fieldOwner, ed25519.PublicKeySize)
}

// ValidateSize reports whether the serialized record fits within limit.
func ValidateSize(r Record, limit int) bool {
	return SerializedSize(r) <= limit
}

// Unmarshal decodes a record. The returned record does not alias b.
func Unmarshal(b []byte) (Record, error) {
	var (
		vis      address.Visibility
		value    []byte
		owner    []byte
		hasValue bool
	)
	err := wire.Walk(b, func(f wire.Field) error {
		switch f.Num {
		case fieldVisibility:
			v, err := f.Uint(math.MaxUint8)
			if err != nil {
				return err
			}
			vis = address.Visibility(v)
		case fieldValue:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			value = bytes.Clone(f.Bytes)
			if value == nil {
				value = []byte{}
			}
			hasValue = true
		case fieldOwner:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			owner = bytes.Clone(f.Bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !hasValue {
		return nil, fmt.Errorf("%w: chunk record has no value", wire.ErrDecode)
	}

	switch vis {
	case address.Published:
		if owner != nil {
			return nil, fmt.Errorf("%w: published chunk carries an owner", wire.ErrDecode)
		}
		return NewPublished(value), nil
	case address.Restricted:
		if len(owner) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: restricted chunk owner is %d bytes", wire.ErrDecode, len(owner))
		}
		return NewRestricted(value, owner), nil
	default:
		return nil, fmt.Errorf("%w: unknown visibility %d", wire.ErrDecode, vis)
	}
}
