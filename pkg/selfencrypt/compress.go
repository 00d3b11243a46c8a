package selfencrypt

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz/lzma"

	"github.com/i5heu/ouroboros-idata/pkg/datamap"
)

func compress(c datamap.Compression, data []byte) ([]byte, error) {
	switch c {
	case datamap.CompressionNone:
		return data, nil
	case datamap.CompressionZstd:
		return compressWithZstd(data)
	case datamap.CompressionLZMA:
		return compressWithLzma(data)
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

// decompress expands data and refuses output larger than sourceSize.
func decompress(c datamap.Compression, data []byte, sourceSize uint64) ([]byte, error) {
	switch c {
	case datamap.CompressionNone:
		return data, nil
	case datamap.CompressionZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return readLimited(dec, sourceSize)
	case datamap.CompressionLZMA:
		r, err := lzma.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create LZMA reader: %w", err)
		}
		return readLimited(r, sourceSize)
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

const maxPrealloc = 4 << 20

func readLimited(r io.Reader, sourceSize uint64) ([]byte, error) {
	var buf bytes.Buffer
	if sourceSize <= maxPrealloc {
		buf.Grow(int(sourceSize))
	}
	n, err := io.Copy(&buf, io.LimitReader(r, int64(sourceSize)+1))
	if err != nil {
		return nil, err
	}
	if uint64(n) > sourceSize {
		return nil, fmt.Errorf("decompressed chunk exceeds its recorded size of %d bytes", sourceSize)
	}
	return buf.Bytes(), nil
}

func compressWithZstd(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err = enc.Write(data); err != nil {
		return nil, err
	}
	if err = enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressWithLzma(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create LZMA writer: %w", err)
	}
	if _, err = w.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
