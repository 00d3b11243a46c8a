package ouroborosidata

import (
	"context"
	"fmt"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-idata/internal/erasure"
	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/chunkstore"
)

func corruptSlices(t *testing.T, s *Store, addr address.Address, slices ...int) {
	t.Helper()
	err := s.badgerDB.Update(func(txn *badger.Txn) error {
		for _, i := range slices {
			key := fmt.Sprintf("%s%s_%d", chunkstore.SlicePrefix, addr, i)
			if err := txn.Set([]byte(key), []byte("garbage")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestValidateAllPassesOnHealthyStore(t *testing.T) {
	s, cleanup := setupStoreForIntegration(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Store(ctx, randomBytes(t, 300*1024), address.Published, nil)
	require.NoError(t, err)
	_, err = s.Store(ctx, []byte("restricted"), address.Restricted, nil)
	require.NoError(t, err)

	results, err := s.ValidateAll(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.True(t, r.Passed(), r.AddressBase64)
		assert.Zero(t, r.DamagedSlices)
	}
}

func TestValidateAddressReportsRepairableDamage(t *testing.T) {
	s, cleanup := setupStoreForIntegration(t)
	defer cleanup()
	ctx := context.Background()

	addr, err := s.Store(ctx, []byte("parity covers this"), address.Restricted, nil)
	require.NoError(t, err)
	corruptSlices(t, s, addr, 0, 5)

	damaged, err := s.ValidateAddress(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 2, damaged)

	got, err := s.GetValue(ctx, addr, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("parity covers this"), got)
	require.NoError(t, s.ValidateValue(ctx, addr, nil))
}

func TestValidateAllDetectsCorruption(t *testing.T) {
	s, cleanup := setupStoreForIntegration(t)
	defer cleanup()
	ctx := context.Background()

	good, err := s.Store(ctx, []byte("intact"), address.Published, nil)
	require.NoError(t, err)
	bad, err := s.Store(ctx, []byte("broken"), address.Published, nil)
	require.NoError(t, err)
	corruptSlices(t, s, bad, 0, 1, 2)

	_, err = s.ValidateAddress(ctx, bad)
	assert.ErrorIs(t, err, erasure.ErrTooFewSlices)

	results, err := s.ValidateAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, erasure.ErrTooFewSlices)
	require.Len(t, results, 2)

	byAddr := map[address.Address]ValidationResult{}
	for _, r := range results {
		byAddr[r.Address] = r
	}
	assert.True(t, byAddr[good].Passed())
	assert.False(t, byAddr[bad].Passed())
	assert.Equal(t, bad.Base64(), byAddr[bad].AddressBase64)
}
