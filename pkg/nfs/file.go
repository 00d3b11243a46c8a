// Package nfs keeps named files in a versioned directory. A directory entry
// points at the root chunk of an immutable value; rewriting a file creates a
// new value and moves the entry to it.
package nfs

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/i5heu/ouroboros-idata/pkg/address"
)

// File is the metadata stored in a directory entry.
type File struct {
	Name         string          `cbor:"1,keyasint"`
	DataMapName  address.Address `cbor:"2,keyasint"`
	Size         uint64          `cbor:"3,keyasint"`
	Created      time.Time       `cbor:"4,keyasint"`
	Modified     time.Time       `cbor:"5,keyasint"`
	UserMetadata []byte          `cbor:"6,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("nfs: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("nfs: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes f with deterministic CBOR.
func (f File) Encode() ([]byte, error) {
	b, err := encMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding file %q: %w", f.Name, err)
	}
	return b, nil
}

// DecodeFile is the inverse of File.Encode. Unknown fields are ignored.
func DecodeFile(b []byte) (File, error) {
	var f File
	if err := decMode.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("decoding file: %w", err)
	}
	return f, nil
}

// Version selects the version a directory change creates.
type Version struct {
	next bool
	n    uint64
}

// GetNext asks the directory to use the current version plus one.
func GetNext() Version { return Version{next: true} }

// Custom uses version n, which is rejected unless it directly follows the current one.
func Custom(n uint64) Version { return Version{n: n} }

// successor returns the version to write on top of current.
func (v Version) successor(current uint64) uint64 {
	if v.next {
		return current + 1
	}
	return v.n
}

func (v Version) String() string {
	if v.next {
		return "next"
	}
	return fmt.Sprintf("%d", v.n)
}
