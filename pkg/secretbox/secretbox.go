// Package secretbox seals small payloads under a caller held symmetric key.
// It protects the innermost data map of an immutable value; the key itself is
// never stored on the network.
package secretbox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size of a secret key in bytes.
const KeySize = chacha20poly1305.KeySize

// Version is prepended to every sealed blob and authenticated as AAD.
const Version byte = 0x01

// Overhead is the number of bytes Encrypt adds to the plaintext.
const Overhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// ErrDecrypt is returned when a blob cannot be opened with the given key.
var ErrDecrypt = errors.New("decryption failed")

// Key is a symmetric secret.
type Key [KeySize]byte

// GenerateKey returns a fresh random key.
func GenerateKey() (*Key, error) {
	var k Key
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return &k, nil
}

// KeyFromBytes copies b into a key.
func KeyFromBytes(b []byte) (*Key, error) {
	if len(b) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(b))
	}
	var k Key
	copy(k[:], b)
	return &k, nil
}

// LoadKey reads a raw key file.
func LoadKey(path string) (*Key, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file %s: %w", path, err)
	}
	return KeyFromBytes(b)
}

// SaveKey writes k to path, readable by the owner only.
func SaveKey(path string, k *Key) error {
	return os.WriteFile(path, k[:], 0o600)
}

// Encrypt seals plaintext:
//
//	[version][24 byte random nonce][ciphertext+tag]
func Encrypt(plaintext []byte, key *Key) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	out := make([]byte, 1+chacha20poly1305.NonceSizeX, len(plaintext)+Overhead)
	out[0] = Version
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	nonce := out[1 : 1+chacha20poly1305.NonceSizeX]
	return aead.Seal(out, nonce, plaintext, out[:1]), nil
}

// Decrypt opens a blob produced by Encrypt. Every failure wraps ErrDecrypt.
func Decrypt(blob []byte, key *Key) ([]byte, error) {
	if len(blob) < Overhead {
		return nil, fmt.Errorf("%w: blob is %d bytes, minimum is %d", ErrDecrypt, len(blob), Overhead)
	}
	if blob[0] != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrDecrypt, blob[0])
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], blob[:1])
	if err != nil {
		return nil, fmt.Errorf("%w: wrong key or tampered data", ErrDecrypt)
	}
	return plaintext, nil
}
