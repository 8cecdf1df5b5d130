// Package scheduler owns the process's background jobs: the price feed
// warm-up and the session sweep. Jobs run on a cron scheduler with panic
// recovery so a background failure never takes down the request path.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/davidbz/turnstile/internal/config"
	"github.com/davidbz/turnstile/internal/pricefeed"
	"github.com/davidbz/turnstile/internal/session"
)

// Scheduler runs the gateway's periodic jobs.
type Scheduler struct {
	cron   *cron.Cron
	feed   *pricefeed.Feed
	logger *zap.Logger
}

// New creates the scheduler and registers the background jobs (DI constructor).
func New(
	feed *pricefeed.Feed,
	sweeper *session.Sweeper,
	feedCfg *config.PriceFeedConfig,
	sessionCfg *config.SessionConfig,
	logger *zap.Logger,
) (*Scheduler, error) {
	cronLogger := &zapCronLogger{logger: logger}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	refreshEvery := time.Duration(feedCfg.TTLSeconds) * time.Second
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", refreshEvery), func() {
		feed.Refresh(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule price feed refresh: %w", err)
	}

	sweepEvery := time.Duration(sessionCfg.SweepIntervalSeconds) * time.Second
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", sweepEvery), func() {
		sweeper.Sweep(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	return &Scheduler{cron: c, feed: feed, logger: logger}, nil
}

// Start begins running jobs on their cadence. The price feed is warmed once
// immediately so the first quotes rarely pay the fetch latency.
func (s *Scheduler) Start() {
	s.logger.Info("starting background scheduler")
	go s.feed.Refresh(context.Background())
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("background scheduler stopped")
}

// zapCronLogger adapts zap to the cron logger interface.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l *zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
