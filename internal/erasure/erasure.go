// Package erasure stripes a value over Reed-Solomon slices so a chunk survives
// the loss of up to ParitySlices stored slices.
package erasure

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

var ErrTooFewSlices = errors.New("not enough slices to reconstruct")

// Params is the stripe layout of a value.
type Params struct {
	DataSlices   uint8
	ParitySlices uint8
}

// Total returns the number of slices in a stripe.
func (p Params) Total() int {
	return int(p.DataSlices) + int(p.ParitySlices)
}

// Validate checks the limits imposed by the encoder.
func (p Params) Validate() error {
	if p.DataSlices == 0 {
		return fmt.Errorf("reed-solomon data slices must be at least 1")
	}
	if p.Total() > 256 {
		return fmt.Errorf("reed-solomon stripe of %d slices exceeds 256", p.Total())
	}
	return nil
}

// Split encodes value into Total() slices, data slices first.
func Split(value []byte, p Params) ([][]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("cannot split empty value")
	}
	enc, err := reedsolomon.New(int(p.DataSlices), int(p.ParitySlices))
	if err != nil {
		return nil, fmt.Errorf("error creating reed solomon encoder: %w", err)
	}
	slices, err := enc.Split(value)
	if err != nil {
		return nil, fmt.Errorf("error splitting value: %w", err)
	}
	if err := enc.Encode(slices); err != nil {
		return nil, fmt.Errorf("error computing parity: %w", err)
	}
	if len(slices) != p.Total() {
		return nil, fmt.Errorf("unexpected number of slices: got %d, expected %d", len(slices), p.Total())
	}
	return slices, nil
}

// Join rebuilds a value of originalSize bytes. Missing slices are nil entries;
// up to ParitySlices of them may be missing.
func Join(slices [][]byte, p Params, originalSize int) ([]byte, error) {
	if len(slices) != p.Total() {
		return nil, fmt.Errorf("got %d slice positions, expected %d", len(slices), p.Total())
	}
	present := 0
	for _, s := range slices {
		if s != nil {
			present++
		}
	}
	if present < int(p.DataSlices) {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTooFewSlices, present, p.DataSlices)
	}

	enc, err := reedsolomon.New(int(p.DataSlices), int(p.ParitySlices))
	if err != nil {
		return nil, fmt.Errorf("failed to create Reed-Solomon decoder: %w", err)
	}
	if present < len(slices) {
		if err := enc.Reconstruct(slices); err != nil {
			return nil, fmt.Errorf("failed to reconstruct Reed-Solomon slices: %w", err)
		}
	}

	var out bytes.Buffer
	out.Grow(originalSize)
	if err := enc.Join(&out, slices, originalSize); err != nil {
		return nil, fmt.Errorf("failed to join Reed-Solomon slices: %w", err)
	}
	return out.Bytes(), nil
}
