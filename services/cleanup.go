package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"superparty/logging"
)

// CleanupStats summarizes the sweeps run so far.
type CleanupStats struct {
	Runs      int64     `json:"runs"`
	Removed   int64     `json:"removed"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

// CleanupService periodically removes roster slots whose hero or team
// was deleted behind the store's back.
type CleanupService struct {
	ctrl     *DatabaseController
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	stats CleanupStats
}

func NewCleanupService(ctrl *DatabaseController, interval time.Duration, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		ctrl:     ctrl,
		interval: interval,
		logger:   logging.Default(logger).With("component", "cleanup"),
	}
}

// RunOnce performs one sweep and returns how many slots it removed.
func (s *CleanupService) RunOnce() (int64, error) {
	removed, err := s.ctrl.PruneOrphans()

	s.mu.Lock()
	s.stats.Runs++
	s.stats.Removed += removed
	s.stats.LastRun = time.Now().UTC()
	s.stats.LastError = ""
	if err != nil {
		s.stats.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("cleanup sweep failed", "error", err)
	}
	return removed, err
}

// Run sweeps every interval until ctx is done. A zero interval returns
// immediately. Sweep failures are logged and do not stop the loop.
func (s *CleanupService) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.RunOnce()
		}
	}
}

// Stats returns a copy of the sweep counters.
func (s *CleanupService) Stats() CleanupStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
