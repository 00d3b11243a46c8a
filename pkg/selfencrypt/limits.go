package selfencrypt

import (
	"fmt"
	"strconv"
	"strings"

	chunker "github.com/ipfs/boxo/chunker"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/i5heu/ouroboros-idata/pkg/datamap"
)

// Largest chunk the boxo buzhash splitter emits.
const buzhashMax = 512 << 10

// MaxChunkLen returns the largest clear chunk the chunker spec can emit.
func MaxChunkLen(spec string) (int, error) {
	if err := ValidateChunker(spec); err != nil {
		return 0, err
	}
	switch {
	case spec == "" || spec == DefaultChunker:
		return buzhashMax, nil
	case spec == "default":
		return int(chunker.DefaultBlockSize), nil
	case strings.HasPrefix(spec, "size-"):
		return strconv.Atoi(strings.TrimPrefix(spec, "size-"))
	case strings.HasPrefix(spec, "rabin"):
		parts := strings.Split(spec, "-")
		switch len(parts) {
		case 1:
			avg := int(chunker.DefaultBlockSize)
			return avg + avg/2, nil
		case 2:
			avg, err := strconv.Atoi(parts[1])
			if err != nil {
				return 0, err
			}
			return avg + avg/2, nil
		case 4:
			hi := parts[3]
			if i := strings.LastIndexByte(hi, ':'); i >= 0 {
				hi = hi[i+1:]
			}
			return strconv.Atoi(hi)
		}
	}
	return 0, fmt.Errorf("cannot determine maximum chunk size of %q", spec)
}

// MaxSealedLen bounds the stored size of a chunk of n clear bytes after
// compression with c and sealing.
func MaxSealedLen(c datamap.Compression, n int) int {
	switch c {
	case datamap.CompressionZstd:
		n += n>>8 + 64
	case datamap.CompressionLZMA:
		n += n>>6 + 1024
	}
	return n + chacha20poly1305.Overhead
}

// MaxSealedChunk returns the largest sealed chunk o can produce.
func (o Options) MaxSealedChunk() (int, error) {
	n, err := MaxChunkLen(o.Chunker)
	if err != nil {
		return 0, err
	}
	return MaxSealedLen(o.Compression, n), nil
}
