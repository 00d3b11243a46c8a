package chunk

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/wire"
)

func testOwner(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub
}

func TestMarshalRoundTrip(t *testing.T) {
	owner := testOwner(t)

	for _, rec := range []Record{
		NewPublished([]byte("hello")),
		NewPublished([]byte{}),
		NewRestricted([]byte("secret"), owner),
	} {
		encoded := Marshal(rec)
		assert.Len(t, encoded, SerializedSize(rec))

		decoded, err := Unmarshal(encoded)
		require.NoError(t, err)
		assert.Equal(t, rec.Visibility(), decoded.Visibility())
		assert.Equal(t, rec.Value(), decoded.Value())
		assert.Equal(t, rec.Address(), decoded.Address())
		assert.True(t, SameNamespace(rec, decoded))
	}
}

func TestAddressesDependOnVisibility(t *testing.T) {
	owner := testOwner(t)
	value := []byte("payload")

	pub := NewPublished(value)
	res := NewRestricted(value, owner)

	assert.Equal(t, address.Published, pub.Address().Visibility)
	assert.Equal(t, address.Restricted, res.Address().Visibility)
	assert.NotEqual(t, pub.Name(), res.Name())
	assert.False(t, SameNamespace(pub, res))
	assert.False(t, SameNamespace(res, NewRestricted(value, testOwner(t))))
}

func TestNewValidatesOwner(t *testing.T) {
	_, err := New(address.Restricted, []byte("x"), nil)
	assert.Error(t, err)

	_, err = New(address.Visibility(9), []byte("x"), nil)
	assert.Error(t, err)

	rec, err := New(address.Published, []byte("x"), testOwner(t))
	require.NoError(t, err)
	_, ok := rec.(*Published)
	assert.True(t, ok)
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	owner := testOwner(t)
	valid := Marshal(NewRestricted([]byte("payload"), owner))

	cases := map[string][]byte{
		"truncated":        valid[:len(valid)-3],
		"no value":         wire.AppendVarint(nil, fieldVisibility, uint64(address.Published)),
		"unknown vis":      wire.AppendBytes(wire.AppendVarint(nil, fieldVisibility, 7), fieldValue, []byte("v")),
		"short owner":      wire.AppendBytes(wire.AppendBytes(wire.AppendVarint(nil, fieldVisibility, uint64(address.Restricted)), fieldValue, []byte("v")), fieldOwner, []byte{1, 2}),
		"published+owner":  wire.AppendBytes(wire.AppendBytes(wire.AppendVarint(nil, fieldVisibility, uint64(address.Published)), fieldValue, []byte("v")), fieldOwner, owner),
		"field number 0":   {0x01, 0x02},
		"wrong value type": wire.AppendVarint(wire.AppendVarint(nil, fieldVisibility, 1), fieldValue, 3),
		"vis overflow 256": wire.AppendBytes(wire.AppendVarint(nil, fieldVisibility, 256), fieldValue, []byte("v")),
		"vis overflow 257": wire.AppendBytes(wire.AppendVarint(nil, fieldVisibility, 257), fieldValue, []byte("v")),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(input)
			assert.ErrorIs(t, err, wire.ErrDecode)
		})
	}
}

func TestValidateSize(t *testing.T) {
	rec := NewPublished(make([]byte, MaxChunkSize))
	assert.False(t, ValidateSize(rec, MaxChunkSize))

	small := NewPublished(make([]byte, 1024))
	assert.True(t, ValidateSize(small, MaxChunkSize))
	assert.True(t, ValidateSize(small, SerializedSize(small)))
	assert.False(t, ValidateSize(small, SerializedSize(small)-1))
}
