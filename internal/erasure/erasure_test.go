package erasure

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitJoinWithLostSlices(t *testing.T) {
	p := Params{DataSlices: 4, ParitySlices: 2}
	value := make([]byte, 10_001)
	_, err := rand.Read(value)
	require.NoError(t, err)

	slices, err := Split(value, p)
	require.NoError(t, err)
	require.Len(t, slices, 6)

	slices[0] = nil
	slices[5] = nil

	joined, err := Join(slices, p, len(value))
	require.NoError(t, err)
	assert.Equal(t, value, joined)
}

func TestJoinNeedsEnoughSlices(t *testing.T) {
	p := Params{DataSlices: 3, ParitySlices: 1}
	slices, err := Split([]byte("some value to stripe"), p)
	require.NoError(t, err)

	slices[0], slices[1] = nil, nil
	_, err = Join(slices, p, 20)
	assert.ErrorIs(t, err, ErrTooFewSlices)
}

func TestParams(t *testing.T) {
	assert.Error(t, Params{}.Validate())
	assert.Error(t, Params{DataSlices: 200, ParitySlices: 100}.Validate())
	assert.NoError(t, Params{DataSlices: 1}.Validate())

	_, err := Split(nil, Params{DataSlices: 1})
	assert.Error(t, err)
}
