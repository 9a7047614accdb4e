package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stokmanager/internal/logger"
)

// StartRefreshJob keeps the barcode index in step with out-of-band catalog
// edits until ctx is done.
func (s *Service) StartRefreshJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Inventory refresh job started",
		zap.Duration("interval", interval),
	)

	s.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Inventory refresh job stopped")
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Service) refresh(ctx context.Context) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.index.Refresh(ctx); err != nil {
		logger.Error("Failed to refresh inventory index", zap.Error(err))
		return
	}
	logger.Debug("Inventory index refreshed", zap.Int("barcodes", s.index.Len()))
}
