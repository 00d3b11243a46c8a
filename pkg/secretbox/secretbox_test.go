package secretbox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	for _, plaintext := range [][]byte{nil, []byte("x"), make([]byte, 64*1024)} {
		blob, err := Encrypt(plaintext, key)
		require.NoError(t, err)
		assert.Len(t, blob, len(plaintext)+Overhead)

		opened, err := Decrypt(blob, key)
		require.NoError(t, err)
		assert.Equal(t, len(plaintext), len(opened))
	}
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	a, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptFailsClosed(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	blob, err := Encrypt([]byte("data map bytes"), key)
	require.NoError(t, err)

	_, err = Decrypt(blob, other)
	assert.ErrorIs(t, err, ErrDecrypt)

	tampered := append([]byte{}, blob...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = Decrypt(tampered, key)
	assert.ErrorIs(t, err, ErrDecrypt)

	wrongVersion := append([]byte{}, blob...)
	wrongVersion[0] = 0x02
	_, err = Decrypt(wrongVersion, key)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Decrypt([]byte("short"), key)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestKeyFile(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "secret.key")
	require.NoError(t, SaveKey(path, key))

	loaded, err := LoadKey(path)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	_, err = KeyFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}
