// Package jobs holds the scheduled background tasks of the API process.
package jobs

import (
	"context"
	"fmt"
	"time"

	"candle-shop/middleware"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

const (
	StaleOrderSchedule = "@midnight"
	StaleOrderAge      = 24 * time.Hour
	staleReportTimeout = time.Minute
)

type StaleOrderCounter interface {
	CountStalePending(ctx context.Context, age time.Duration) (int, error)
}

// StaleOrderReport surfaces unpaid pending orders left behind by abandoned
// checkouts or failed compensation. It only reports.
type StaleOrderReport struct {
	counter StaleOrderCounter
	logger  *zap.Logger
}

func NewStaleOrderReport(counter StaleOrderCounter, logger *zap.Logger) *StaleOrderReport {
	return &StaleOrderReport{counter: counter, logger: logger}
}

func (r *StaleOrderReport) Run(ctx context.Context) error {
	n, err := r.counter.CountStalePending(ctx, StaleOrderAge)
	if err != nil {
		return fmt.Errorf("failed to count stale orders: %w", err)
	}

	middleware.SetStalePendingOrders(n)
	if n > 0 {
		r.logger.Warn("Stale pending orders found",
			zap.Int("count", n),
			zap.Duration("older_than", StaleOrderAge),
		)
		return nil
	}
	r.logger.Info("No stale pending orders")
	return nil
}

// Schedule starts the nightly report. Stop the returned scheduler on
// shutdown.
func Schedule(report *StaleOrderReport, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	err := c.AddFunc(StaleOrderSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), staleReportTimeout)
		defer cancel()
		if err := report.Run(ctx); err != nil {
			logger.Error("Stale order report failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule stale order report: %w", err)
	}
	c.Start()
	return c, nil
}
