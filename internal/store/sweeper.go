package store

import (
	"context"
	"log/slog"
	"time"

	"anichat/internal/observability/metrics"
)

// Sweeper periodically purges expired pending registrations. Readers never
// rely on it: Get and Consume filter on expires_at themselves.
type Sweeper struct {
	Store    *Store
	Interval time.Duration
	Logger   *slog.Logger
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				logger.Warn("pending sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("pending sweep removed expired records", "count", n)
			}
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.Store.Pending().DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	metrics.PendingSweptTotal.Add(float64(n))
	return n, nil
}
