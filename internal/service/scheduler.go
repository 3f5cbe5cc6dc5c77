package service

import (
	"context"
	"log/slog"
	"time"

	"go-office-trash/internal/model"
)

// ExpiryScheduler triggers the expiry sweep on a fixed interval. Scheduling
// lives outside TrashService, which only exposes the sweep.
type ExpiryScheduler struct {
	trash    *TrashService
	settings model.TrashSettings
	now      func() time.Time
}

func NewExpiryScheduler(trash *TrashService, settings model.TrashSettings) *ExpiryScheduler {
	return &ExpiryScheduler{trash: trash, settings: settings, now: time.Now}
}

func (s *ExpiryScheduler) Interval() time.Duration {
	hours := s.settings.AutoCleanupInterval
	if hours < 1 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// Run sweeps once at start and then every Interval until ctx is done. It
// returns immediately when auto cleanup is disabled.
func (s *ExpiryScheduler) Run(ctx context.Context) error {
	if !s.settings.AutoCleanupEnabled {
		slog.Info("trash auto cleanup disabled")
		return nil
	}

	interval := s.Interval()
	slog.Info("trash auto cleanup scheduled", "interval", interval.String())

	s.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpiryScheduler) sweep(ctx context.Context) {
	result, err := s.trash.RunAutoExpiry(ctx, s.now())
	if err != nil {
		slog.Error("trash expiry sweep failed", "error", err)
		return
	}
	for _, failure := range result.Failed {
		slog.Warn("trash expiry purge failed", "entry_id", failure.ID, "code", failure.Code, "error", failure.Error)
	}
}
