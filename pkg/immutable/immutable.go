// Package immutable turns arbitrary byte payloads into content addressed
// chunk records small enough for the network, and back.
//
// Create content-encrypts the payload, optionally seals the resulting data map
// under a caller key and wraps it as a Literal. Pack then keeps replacing an
// oversized record with a Descriptor of its own encrypted chunks until the
// record fits. Unpack walks the Descriptors back down to the Literal.
package immutable

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunk"
	"github.com/i5heu/ouroboros-idata/pkg/datamap"
	"github.com/i5heu/ouroboros-idata/pkg/encoding"
	"github.com/i5heu/ouroboros-idata/pkg/secretbox"
	"github.com/i5heu/ouroboros-idata/pkg/selfencrypt"
	"github.com/i5heu/ouroboros-idata/pkg/wire"
)

var (
	// ErrDecode reports malformed or truncated encodings and data maps.
	ErrDecode = wire.ErrDecode
	// ErrDecrypt reports a missing, wrong or rejected secret key.
	ErrDecrypt = secretbox.ErrDecrypt
	// ErrSizeInvariant means packing could not bring a record under the size limit.
	ErrSizeInvariant = errors.New("chunk record exceeds the maximum size after packing")

	ErrNotFound           = chunk.ErrNotFound
	ErrAlreadyExists      = chunk.ErrAlreadyExists
	ErrPermissionDenied   = chunk.ErrPermissionDenied
	ErrVisibilityMismatch = chunk.ErrVisibilityMismatch
)

// Engine packs and unpacks values against a Client.
type Engine struct {
	client       Client
	maxChunkSize int
	encOpts      selfencrypt.Options
	log          logrus.FieldLogger
}

type Option func(*Engine)

// WithMaxChunkSize overrides chunk.MaxChunkSize.
func WithMaxChunkSize(n int) Option {
	return func(e *Engine) { e.maxChunkSize = n }
}

// WithEncryptorOptions configures chunking and compression of the content encryptor.
func WithEncryptorOptions(opts selfencrypt.Options) Option {
	return func(e *Engine) { e.encOpts = opts }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an Engine using client for all chunk I/O.
func New(client Client, opts ...Option) (*Engine, error) {
	e := &Engine{client: client, maxChunkSize: chunk.MaxChunkSize}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		e.log = l
	}
	if _, err := selfencrypt.New(nil, e.encOpts); err != nil {
		return nil, err
	}
	if err := CheckChunkLimit(e.maxChunkSize, e.encOpts); err != nil {
		return nil, err
	}
	return e, nil
}

// CheckChunkLimit verifies that every chunk opts can produce still fits in a
// record of maxChunkSize bytes once sealed.
func CheckChunkLimit(maxChunkSize int, opts selfencrypt.Options) error {
	if maxChunkSize <= selfencrypt.MinEncryptableSize {
		return fmt.Errorf("maximum chunk size %d must exceed %d bytes", maxChunkSize, selfencrypt.MinEncryptableSize)
	}
	sealed, err := opts.MaxSealedChunk()
	if err != nil {
		return err
	}
	if need := chunk.MaxRecordSize(sealed); need > maxChunkSize {
		chunkerSpec := opts.Chunker
		if chunkerSpec == "" {
			chunkerSpec = selfencrypt.DefaultChunker
		}
		return fmt.Errorf("chunker %q with %s compression needs records of up to %d bytes, limit is %d",
			chunkerSpec, opts.Compression, need, maxChunkSize)
	}
	return nil
}

// MaxChunkSize returns the size limit records are packed to.
func (e *Engine) MaxChunkSize() int {
	return e.maxChunkSize
}

func (e *Engine) encryptor(vis address.Visibility) (*selfencrypt.Encryptor, error) {
	return selfencrypt.New(NewSelfEncryptionStorage(e.client, vis, e.maxChunkSize), e.encOpts)
}

func (e *Engine) owner(vis address.Visibility) ed25519.PublicKey {
	if vis == address.Restricted {
		return e.client.OwnerKey()
	}
	return nil
}

// Create content-encrypts value and returns the root record describing it.
// The payload chunks are written through the client; the returned record is
// not, the caller submits it.
//
// key, when set, seals only the innermost data map. The descriptors added by
// Pack are never sealed.
func (e *Engine) Create(ctx context.Context, value []byte, vis address.Visibility, key *secretbox.Key) (chunk.Record, error) {
	if !vis.Valid() {
		return nil, fmt.Errorf("unknown visibility %d", vis)
	}
	enc, err := e.encryptor(vis)
	if err != nil {
		return nil, err
	}
	m, err := enc.Encrypt(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("content encryption of %d byte value: %w", len(value), err)
	}

	serialized := datamap.Marshal(m)
	if key != nil {
		serialized, err = secretbox.Encrypt(serialized, key)
		if err != nil {
			return nil, err
		}
	}
	return e.Pack(ctx, encoding.EncodeLiteral(serialized), vis)
}

// Pack wraps value in a record of visibility vis. While the record is larger
// than the size limit its serialized form is content-encrypted and replaced
// by a Descriptor of the resulting data map. Every step must shrink the
// wrapped value or Pack fails with ErrSizeInvariant.
func (e *Engine) Pack(ctx context.Context, value []byte, vis address.Visibility) (chunk.Record, error) {
	owner := e.owner(vis)
	var enc *selfencrypt.Encryptor

	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := chunk.New(vis, value, owner)
		if err != nil {
			return nil, err
		}
		size := chunk.SerializedSize(rec)
		if size <= e.maxChunkSize {
			e.log.WithFields(logrus.Fields{"depth": depth, "size": size, "visibility": vis}).Trace("packed chunk record")
			return rec, nil
		}

		if enc == nil {
			if enc, err = e.encryptor(vis); err != nil {
				return nil, err
			}
		}
		m, err := enc.Encrypt(ctx, chunk.Marshal(rec))
		if err != nil {
			return nil, fmt.Errorf("packing level %d: %w", depth, err)
		}
		next := encoding.EncodeDescriptor(m)
		e.log.WithFields(logrus.Fields{
			"depth":      depth,
			"size":       size,
			"descriptor": len(next),
			"chunks":     len(m.Chunks),
		}).Trace("wrapping oversized chunk record")

		if len(next) >= len(value) {
			return nil, fmt.Errorf("%w: level %d descriptor is %d bytes, wrapped value was %d",
				ErrSizeInvariant, depth, len(next), len(value))
		}
		value = next
	}
}

// Unpack follows Descriptors from rec down to the Literal and returns its
// bytes. Every record met on the way must share rec's namespace.
func (e *Engine) Unpack(ctx context.Context, rec chunk.Record) ([]byte, error) {
	top := rec
	var enc *selfencrypt.Encryptor

	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := encoding.Decode(rec.Value())
		if err != nil {
			return nil, fmt.Errorf("unpacking level %d: %w", depth, err)
		}
		if v.Kind == encoding.Literal {
			return v.Literal, nil
		}

		if enc == nil {
			if enc, err = e.encryptor(top.Visibility()); err != nil {
				return nil, err
			}
		}
		stream, err := enc.Decrypt(ctx, v.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("unpacking level %d: %w", depth, err)
		}
		inner, err := chunk.Unmarshal(stream)
		if err != nil {
			return nil, fmt.Errorf("unpacking level %d: %w", depth, err)
		}
		if !chunk.SameNamespace(top, inner) {
			return nil, fmt.Errorf("%w: level %d holds a %s record inside a %s one",
				ErrVisibilityMismatch, depth, inner.Visibility(), top.Visibility())
		}
		e.log.WithFields(logrus.Fields{"depth": depth, "size": len(stream)}).Trace("unwrapped descriptor")
		rec = inner
	}
}

// ExtractValue returns the original payload described by rec. key must be
// the key given to Create, or nil if none was.
func (e *Engine) ExtractValue(ctx context.Context, rec chunk.Record, key *secretbox.Key) ([]byte, error) {
	m, err := e.DataMap(ctx, rec, key)
	if err != nil {
		return nil, err
	}
	enc, err := e.encryptor(rec.Visibility())
	if err != nil {
		return nil, err
	}
	value, err := enc.Decrypt(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("reassembling value: %w", err)
	}
	return value, nil
}

// DataMap unpacks rec and returns the data map of the original payload
// without fetching its chunks.
func (e *Engine) DataMap(ctx context.Context, rec chunk.Record, key *secretbox.Key) (datamap.DataMap, error) {
	serialized, err := e.Unpack(ctx, rec)
	if err != nil {
		return datamap.DataMap{}, err
	}
	if key != nil {
		if serialized, err = secretbox.Decrypt(serialized, key); err != nil {
			return datamap.DataMap{}, err
		}
	}
	m, err := datamap.Unmarshal(serialized)
	if err != nil {
		return datamap.DataMap{}, fmt.Errorf("reading data map: %w", err)
	}
	return m, nil
}

// ReadRange returns length bytes of the payload behind rec starting at offset.
func (e *Engine) ReadRange(ctx context.Context, rec chunk.Record, key *secretbox.Key, offset, length uint64) ([]byte, error) {
	m, err := e.DataMap(ctx, rec, key)
	if err != nil {
		return nil, err
	}
	enc, err := e.encryptor(rec.Visibility())
	if err != nil {
		return nil, err
	}
	return enc.ReadAt(ctx, m, offset, length)
}

// GetValue fetches the record at addr and extracts its payload.
func (e *Engine) GetValue(ctx context.Context, addr address.Address, key *secretbox.Key) ([]byte, error) {
	rec, err := e.client.GetChunk(ctx, addr)
	if err != nil {
		return nil, err
	}
	if err := checkRecord(addr, rec); err != nil {
		return nil, err
	}
	return e.ExtractValue(ctx, rec, key)
}

// GetRange fetches the record at addr and returns length bytes of its
// payload starting at offset.
func (e *Engine) GetRange(ctx context.Context, addr address.Address, key *secretbox.Key, offset, length uint64) ([]byte, error) {
	rec, err := e.client.GetChunk(ctx, addr)
	if err != nil {
		return nil, err
	}
	if err := checkRecord(addr, rec); err != nil {
		return nil, err
	}
	return e.ReadRange(ctx, rec, key, offset, length)
}
