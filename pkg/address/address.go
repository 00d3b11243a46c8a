// Package address defines how chunks are named. A chunk lives in one of two
// namespaces, published or restricted, and its name is a BLAKE3 keyed hash
// of its content (plus the owner key for restricted chunks). The same bytes
// therefore never share a name across namespaces.
package address

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// NameSize is the size of a chunk name in bytes.
const NameSize = 32

// Name is the content hash of a chunk.
type Name [NameSize]byte

// Visibility selects the namespace a chunk is stored in.
type Visibility uint8

const (
	// Published chunks are readable by anyone and can never be deleted.
	Published Visibility = 1
	// Restricted chunks carry an owner key and may be deleted by that owner.
	Restricted Visibility = 2
)

// ErrInvalidAddress is returned when parsing a malformed address string.
var ErrInvalidAddress = errors.New("invalid address")

type domainKey [32]byte

// Domain keys are protocol constants; changing them renames every stored chunk.
var (
	publishedDomainKey = domainKey{
		'o', 'u', 'r', 'o', 'b', 'o', 'r', 'o', 's', '.', 'i', 'd', 'a', 't', 'a', '.',
		'p', 'u', 'b', 'l', 'i', 's', 'h', 'e', 'd', 0, 0, 0, 0, 0, 0, 0,
	}
	restrictedDomainKey = domainKey{
		'o', 'u', 'r', 'o', 'b', 'o', 'r', 'o', 's', '.', 'i', 'd', 'a', 't', 'a', '.',
		'r', 'e', 's', 't', 'r', 'i', 'c', 't', 'e', 'd', 0, 0, 0, 0, 0, 0,
	}
)

func (v Visibility) String() string {
	switch v {
	case Published:
		return "published"
	case Restricted:
		return "restricted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// Valid reports whether v is one of the two known namespaces.
func (v Visibility) Valid() bool {
	return v == Published || v == Restricted
}

// Prefix is the short namespace tag used in address strings.
func (v Visibility) Prefix() string {
	if v == Restricted {
		return "res"
	}
	return "pub"
}

// ParseVisibility accepts "published"/"pub" and "restricted"/"res".
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(s) {
	case "published", "pub":
		return Published, nil
	case "restricted", "res":
		return Restricted, nil
	default:
		return 0, fmt.Errorf("%w: unknown visibility %q", ErrInvalidAddress, s)
	}
}

// PublishedName computes the name of a published chunk holding value.
func PublishedName(value []byte) Name {
	return keyedHash(publishedDomainKey, value)
}

// RestrictedName computes the name of a restricted chunk holding value owned by owner.
func RestrictedName(owner, value []byte) Name {
	hasher := newHasher(restrictedDomainKey)
	hasher.Write(owner)
	hasher.Write(value)
	var name Name
	copy(name[:], hasher.Sum(nil))
	return name
}

func keyedHash(key domainKey, data []byte) Name {
	hasher := newHasher(key)
	hasher.Write(data)
	var name Name
	copy(name[:], hasher.Sum(nil))
	return name
}

func newHasher(key domainKey) *blake3.Hasher {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("address: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

// IsZero reports whether n is the zero name.
func (n Name) IsZero() bool {
	return n == Name{}
}

func (n Name) String() string {
	return hex.EncodeToString(n[:])
}

// ParseName decodes a hex encoded name.
func ParseName(s string) (Name, error) {
	var n Name
	b, err := hex.DecodeString(s)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != NameSize {
		return n, fmt.Errorf("%w: name is %d bytes, want %d", ErrInvalidAddress, len(b), NameSize)
	}
	copy(n[:], b)
	return n, nil
}

// Address is a name qualified by its namespace.
type Address struct {
	Visibility Visibility
	Name       Name
}

// Pub returns the published address for name.
func Pub(name Name) Address {
	return Address{Visibility: Published, Name: name}
}

// Res returns the restricted address for name.
func Res(name Name) Address {
	return Address{Visibility: Restricted, Name: name}
}

// String renders the address as "pub:<hex>" or "res:<hex>".
func (a Address) String() string {
	return a.Visibility.Prefix() + ":" + a.Name.String()
}

// Parse is the inverse of Address.String.
func Parse(s string) (Address, error) {
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Address{}, fmt.Errorf("%w: missing namespace prefix in %q", ErrInvalidAddress, s)
	}
	vis, err := ParseVisibility(prefix)
	if err != nil {
		return Address{}, err
	}
	name, err := ParseName(rest)
	if err != nil {
		return Address{}, err
	}
	return Address{Visibility: vis, Name: name}, nil
}

// Base64 encodes the address as a single byte of visibility followed by the name.
func (a Address) Base64() string {
	buf := make([]byte, 0, 1+NameSize)
	buf = append(buf, byte(a.Visibility))
	buf = append(buf, a.Name[:]...)
	return base64.StdEncoding.EncodeToString(buf)
}

// ParseBase64 is the inverse of Address.Base64.
func ParseBase64(s string) (Address, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != 1+NameSize {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, 1+NameSize, len(b))
	}
	a := Address{Visibility: Visibility(b[0])}
	if !a.Visibility.Valid() {
		return Address{}, fmt.Errorf("%w: unknown visibility %d", ErrInvalidAddress, b[0])
	}
	copy(a.Name[:], b[1:])
	return a, nil
}
