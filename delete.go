package ouroborosidata

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/i5heu/ouroboros-idata/pkg/address"
)

// Delete removes the restricted root chunk at addr. Published chunks are
// permanent and fail with chunk.ErrPermissionDenied. The chunks the root
// describes may be shared with other values and are left in place.
func (s *Store) Delete(ctx context.Context, addr address.Address) error {
	atomic.AddUint64(&s.writeCounter, 1)

	if err := s.DeleteChunk(ctx, addr); err != nil {
		log.WithField("address", addr.String()).WithError(err).Error("Failed to delete chunk")
		return fmt.Errorf("failed to delete chunk: %w", err)
	}

	log.WithField("address", addr.String()).Debug("Successfully deleted chunk")
	return nil
}
