package cart

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// mergeGuestCart copies the guest lines onto the remote cart. It must be
// called while holding the queue and before the remote store becomes active.
//
// A line the server rejects for good, such as a product that no longer
// exists, is dropped so it cannot block sign-in. Any other failure stops the
// merge with the unreplayed lines left in the guest cart.
func (m *Manager) mergeGuestCart(ctx context.Context) error {
	guest, _ := m.local.Read(ctx)
	dropped := 0
	for i, line := range guest {
		err := m.remote.AddLine(ctx, line.Product.ID, line.Quantity, line.Options, nil)
		var remoteErr *RemoteError
		switch {
		case err == nil:
		case errors.As(err, &remoteErr) && remoteErr.Rejected():
			dropped++
			m.logger.Warn("guest line rejected by server, dropping it",
				zap.String("product_id", string(line.Product.ID)),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
		default:
			remaining := guest[i:]
			m.local.Replace(ctx, remaining)
			m.update(func() { m.lines = remaining.clone() })
			m.logger.Info("guest cart merge stopped",
				zap.Int("merged", i-dropped),
				zap.Int("remaining", len(remaining)),
				zap.Error(err))
			return err
		}
		m.local.Replace(ctx, guest[i+1:])
	}
	if len(guest) > 0 {
		m.logger.Debug("guest cart merged",
			zap.Int("lines", len(guest)-dropped),
			zap.Int("dropped", dropped))
	}
	return nil
}
