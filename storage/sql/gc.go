package sql

import (
	"context"
	"log/slog"
	"time"
)

// RunGC periodically calls CsrfDeleteExpired until ctx is canceled. CSRF rows
// are already evicted inline by CsrfCreate and CsrfReadByKey on a best-effort
// basis; RunGC exists so an operator can bound how long an unused nonce
// lingers when neither path runs for a while.
func (c *conn) RunGC(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := c.CsrfDeleteExpired(ctx, now)
			if err != nil {
				logger.Error("csrf gc failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Debug("csrf gc evicted expired nonces", "count", n)
			}
		}
	}
}
