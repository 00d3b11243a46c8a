package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespacesNeverCollide(t *testing.T) {
	value := []byte("same bytes in both namespaces")
	owner := make([]byte, 32)

	pub := PublishedName(value)
	res := RestrictedName(owner, value)
	assert.NotEqual(t, pub, res)

	otherOwner := make([]byte, 32)
	otherOwner[0] = 1
	assert.NotEqual(t, res, RestrictedName(otherOwner, value))
	assert.Equal(t, pub, PublishedName(value))
}

func TestAddressStringRoundTrip(t *testing.T) {
	for _, a := range []Address{
		Pub(PublishedName([]byte("a"))),
		Res(RestrictedName([]byte("owner"), []byte("b"))),
	} {
		parsed, err := Parse(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)

		parsed, err = ParseBase64(a.Base64())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"pub",
		"xyz:00",
		"pub:zz",
		"pub:0011",
	} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrInvalidAddress, s)
	}

	_, err := ParseBase64("AAAA")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestVisibility(t *testing.T) {
	v, err := ParseVisibility("RES")
	require.NoError(t, err)
	assert.Equal(t, Restricted, v)
	assert.Equal(t, "published", Published.String())
	assert.False(t, Visibility(0).Valid())
}
