package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/photokiosk/internal/metrics"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/rs/zerolog"
)

// RetentionScheduler deletes old orders once a day
type RetentionScheduler struct {
	store         storage.OrderStore
	retentionDays int
	cleanupTime   time.Time // only hour and minute are used
	now           func() time.Time
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewRetentionScheduler creates a scheduler pruning orders older than
// retentionDays at cleanupTime (HH:MM) every day
func NewRetentionScheduler(store storage.OrderStore, retentionDays int, cleanupTime string, logger zerolog.Logger) (*RetentionScheduler, error) {
	parsedTime, err := time.Parse("15:04", cleanupTime)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup time %q: %w", cleanupTime, err)
	}
	if retentionDays < 1 {
		return nil, fmt.Errorf("retention must be at least one day, got %d", retentionDays)
	}

	return &RetentionScheduler{
		store:         store,
		retentionDays: retentionDays,
		cleanupTime:   parsedTime,
		now:           time.Now,
		logger:        logger.With().Str("component", "retention-scheduler").Logger(),
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the scheduler
func (rs *RetentionScheduler) Start() {
	go rs.run()
	rs.logger.Info().
		Str("cleanup_time", rs.cleanupTime.Format("15:04")).
		Int("retention_days", rs.retentionDays).
		Msg("Order retention scheduler started")
}

// Stop stops the scheduler
func (rs *RetentionScheduler) Stop() {
	close(rs.stopChan)
	rs.logger.Info().Msg("Order retention scheduler stopped")
}

func (rs *RetentionScheduler) run() {
	for {
		nextRun := rs.nextRun()
		waitDuration := nextRun.Sub(rs.now())

		rs.logger.Debug().
			Time("next_run", nextRun).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next order cleanup")

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
			if _, err := rs.Prune(context.Background()); err != nil {
				rs.logger.Error().Err(err).Msg("Failed to prune old orders")
			}
		case <-rs.stopChan:
			timer.Stop()
			return
		}
	}
}

// nextRun returns the next cleanup time after now
func (rs *RetentionScheduler) nextRun() time.Time {
	now := rs.now()

	today := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.cleanupTime.Hour(), rs.cleanupTime.Minute(), 0, 0,
		now.Location(),
	)

	if !now.Before(today) {
		return today.AddDate(0, 0, 1)
	}
	return today
}

// CutoffDate returns the oldest date that is kept
func (rs *RetentionScheduler) CutoffDate() string {
	return rs.now().AddDate(0, 0, -rs.retentionDays).Format(storage.DateLayout)
}

// Prune deletes every order recorded before the cutoff date
func (rs *RetentionScheduler) Prune(ctx context.Context) (int, error) {
	cutoff := rs.CutoffDate()

	deleted, err := rs.store.DeleteOrdersBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	metrics.OrdersPruned.Add(float64(deleted))
	rs.logger.Info().
		Int("orders_deleted", deleted).
		Str("cutoff_date", cutoff).
		Msg("Old orders cleaned up")

	return deleted, nil
}
