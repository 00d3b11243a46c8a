// Package selfencrypt splits a byte stream into content-defined chunks and
// encrypts every chunk with a key derived from the chunks themselves, so
// identical input always produces identical ciphertext and deduplicates in
// the chunk store. The resulting data map is the only secret needed to read
// the stream back.
package selfencrypt

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"

	chunker "github.com/ipfs/boxo/chunker"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/sync/errgroup"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/datamap"
)

// MinEncryptableSize is the smallest input that is chunked. Anything shorter
// is kept inline in the data map.
const MinEncryptableSize = 3 * 1024

// DefaultChunker is the boxo chunker spec used when none is configured.
const DefaultChunker = "buzhash"

var ErrCorruptChunk = errors.New("chunk failed integrity check")

var hkdfInfo = []byte("ouroboros.idata.selfencrypt.v1")

// Storage persists encrypted chunks. Put returns the name the chunk is stored under.
type Storage interface {
	Put(ctx context.Context, content []byte) (address.Name, error)
	Get(ctx context.Context, name address.Name) ([]byte, error)
}

// Options tune chunking. The zero value selects buzhash, no compression and
// one worker per CPU.
type Options struct {
	Chunker     string
	Compression datamap.Compression
	Concurrency int
}

// ValidateChunker checks that spec is understood by the boxo chunker.
func ValidateChunker(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := chunker.FromString(bytes.NewReader(nil), spec); err != nil {
		return fmt.Errorf("invalid chunker %q: %w", spec, err)
	}
	return nil
}

// Encryptor chunks and reassembles streams against a Storage.
type Encryptor struct {
	storage Storage
	opts    Options
}

// New returns an Encryptor writing to storage.
func New(storage Storage, opts Options) (*Encryptor, error) {
	if opts.Chunker == "" {
		opts.Chunker = DefaultChunker
	}
	if err := ValidateChunker(opts.Chunker); err != nil {
		return nil, err
	}
	if opts.Compression > datamap.CompressionLZMA {
		return nil, fmt.Errorf("unknown compression %d", opts.Compression)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	return &Encryptor{storage: storage, opts: opts}, nil
}

func (e *Encryptor) split(data []byte) ([][]byte, error) {
	sp, err := chunker.FromString(bytes.NewReader(data), e.opts.Chunker)
	if err != nil {
		return nil, err
	}

	var chunks [][]byte
	for {
		c, err := sp.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Encrypt stores data as encrypted chunks and returns the map describing them.
// Every chunk is written to storage before Encrypt returns.
func (e *Encryptor) Encrypt(ctx context.Context, data []byte) (datamap.DataMap, error) {
	if len(data) < MinEncryptableSize {
		return datamap.DataMap{Content: bytes.Clone(data), Compression: datamap.CompressionNone}, nil
	}

	chunks, err := e.split(data)
	if err != nil {
		return datamap.DataMap{}, err
	}

	details := make([]datamap.ChunkDetails, len(chunks))
	for i, c := range chunks {
		details[i] = datamap.ChunkDetails{
			Index:      uint32(i),
			PreHash:    blake3.Sum256(c),
			SourceSize: uint64(len(c)),
		}
	}

	names := make([]address.Name, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i := range chunks {
		g.Go(func() error {
			sealed, err := e.seal(details, i, chunks[i])
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			name, err := e.storage.Put(gctx, sealed)
			if err != nil {
				return fmt.Errorf("storing chunk %d: %w", i, err)
			}
			names[i] = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return datamap.DataMap{}, err
	}
	for i := range details {
		details[i].Name = names[i]
	}

	return datamap.DataMap{Chunks: details, Compression: e.opts.Compression}, nil
}

// Decrypt fetches and reassembles the whole stream described by m.
func (e *Encryptor) Decrypt(ctx context.Context, m datamap.DataMap) ([]byte, error) {
	if m.IsInline() {
		return bytes.Clone(m.Content), nil
	}
	return e.readChunks(ctx, m, 0, len(m.Chunks))
}

// ReadAt returns up to length bytes starting at offset, fetching only the chunks that overlap.
func (e *Encryptor) ReadAt(ctx context.Context, m datamap.DataMap, offset, length uint64) ([]byte, error) {
	total := m.Len()
	if offset > total {
		return nil, fmt.Errorf("offset %d is beyond the end of the %d byte stream", offset, total)
	}
	if length > total-offset {
		length = total - offset
	}
	if length == 0 {
		return []byte{}, nil
	}
	if m.IsInline() {
		return bytes.Clone(m.Content[offset : offset+length]), nil
	}

	first, last := -1, -1
	var start, pos uint64
	for i, c := range m.Chunks {
		end := pos + c.SourceSize
		if first < 0 && offset < end {
			first, start = i, pos
		}
		if offset+length <= end {
			last = i
			break
		}
		pos = end
	}

	data, err := e.readChunks(ctx, m, first, last+1)
	if err != nil {
		return nil, err
	}
	skip := offset - start
	if skip+length > uint64(len(data)) {
		return nil, fmt.Errorf("%w: chunks hold %d bytes, data map claims more", ErrCorruptChunk, len(data))
	}
	return data[skip : skip+length], nil
}

func (e *Encryptor) readChunks(ctx context.Context, m datamap.DataMap, from, to int) ([]byte, error) {
	plain := make([][]byte, to-from)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i := from; i < to; i++ {
		g.Go(func() error {
			sealed, err := e.storage.Get(gctx, m.Chunks[i].Name)
			if err != nil {
				return fmt.Errorf("fetching chunk %d: %w", i, err)
			}
			p, err := e.open(m, i, sealed)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			plain[i-from] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	size := 0
	for _, p := range plain {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range plain {
		out = append(out, p...)
	}
	return out, nil
}

func (e *Encryptor) seal(details []datamap.ChunkDetails, i int, chunk []byte) ([]byte, error) {
	compressed, err := compress(e.opts.Compression, chunk)
	if err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	aead, nonce, err := chunkCipher(details, i)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, compressed, indexAAD(i)), nil
}

func (e *Encryptor) open(m datamap.DataMap, i int, sealed []byte) ([]byte, error) {
	aead, nonce, err := chunkCipher(m.Chunks, i)
	if err != nil {
		return nil, err
	}
	compressed, err := aead.Open(nil, nonce, sealed, indexAAD(i))
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrCorruptChunk)
	}
	plain, err := decompress(m.Compression, compressed, m.Chunks[i].SourceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
	}
	if uint64(len(plain)) != m.Chunks[i].SourceSize {
		return nil, fmt.Errorf("%w: chunk is %d bytes, data map says %d", ErrCorruptChunk, len(plain), m.Chunks[i].SourceSize)
	}
	if blake3.Sum256(plain) != m.Chunks[i].PreHash {
		return nil, fmt.Errorf("%w: content hash mismatch", ErrCorruptChunk)
	}
	return plain, nil
}

// chunkCipher derives the key and nonce of chunk i from its own pre-hash and
// the pre-hashes of the two chunks before it, wrapping around the stream.
func chunkCipher(details []datamap.ChunkDetails, i int) (cipher.AEAD, []byte, error) {
	n := len(details)
	secret := make([]byte, 0, 3*datamap.HashSize)
	secret = append(secret, details[i].PreHash[:]...)
	secret = append(secret, details[(i+n-1)%n].PreHash[:]...)
	secret = append(secret, details[(i+n-2)%n].PreHash[:]...)

	material := make([]byte, chacha20poly1305.KeySize+chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfo), material); err != nil {
		return nil, nil, fmt.Errorf("deriving chunk key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(material[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	return aead, material[chacha20poly1305.KeySize:], nil
}

func indexAAD(i int) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(i))
	return b[:]
}
