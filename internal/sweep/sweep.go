// Package sweep closes gatherings whose attendance cutoff has passed. It runs
// lazily before reads and, optionally, on a cron schedule.
package sweep

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arnold/gatherings-api/internal/clock"
	"github.com/arnold/gatherings-api/internal/metrics"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type Sweeper struct {
	db    *gorm.DB
	clock clock.Clock
	group singleflight.Group

	// OnClosed, when set, receives the ids of gatherings a run closed.
	OnClosed func(ids []uuid.UUID)
}

func New(db *gorm.DB, clk clock.Clock) *Sweeper {
	return &Sweeper{db: db, clock: clk}
}

// Run flips closed on every overdue gathering and returns how many rows changed.
// Concurrent calls share one execution, which is detached from the caller's
// cancellation so one aborted request cannot fail the others waiting on it.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do("sweep", func() (interface{}, error) {
		return s.run(shared)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (s *Sweeper) run(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	db := s.db.WithContext(ctx)
	metrics.SweepRuns.Inc()

	var ids []uuid.UUID
	if err := db.Model(&models.Gathering{}).
		Where("due_time < ? AND closed = ?", now, false).
		Pluck("id", &ids).Error; err != nil {
		metrics.SweepErrors.Inc()
		return 0, fmt.Errorf("find overdue gatherings: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := db.Model(&models.Gathering{}).
		Where("id IN ? AND closed = ?", ids, false).
		Update("closed", true)
	if res.Error != nil {
		metrics.SweepErrors.Inc()
		return 0, fmt.Errorf("close overdue gatherings: %w", res.Error)
	}

	metrics.SweepClosed.Add(float64(res.RowsAffected))
	slog.Info("Closed overdue gatherings", "count", res.RowsAffected)

	if s.OnClosed != nil && res.RowsAffected > 0 {
		s.OnClosed(ids)
	}
	return res.RowsAffected, nil
}

// Schedule starts a cron job running the sweep on spec. An empty spec disables
// the periodic trigger and returns a nil scheduler.
func (s *Sweeper) Schedule(spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Run(context.Background()); err != nil {
			slog.Error("Scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()
	slog.Info("Sweep scheduled", "schedule", spec)
	return c, nil
}
