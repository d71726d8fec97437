package cron

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/barkdesk/barkdesk/pkg/charges"
)

const defaultReconcileInterval = 30 * time.Second

var errInvalidRunnerConfig = errors.New("invalid runner config")

// Runner drives periodic settlement reconciliation passes.
type Runner struct {
	scheduler *gocron.Scheduler
	service   *charges.Service
	interval  time.Duration
	logger    *zap.Logger
}

// NewRunner builds a runner around the charge service. Interval values
// below one second fall back to the default.
func NewRunner(service *charges.Service, interval time.Duration, logger *zap.Logger) (*Runner, error) {
	if service == nil || logger == nil {
		return nil, errInvalidRunnerConfig
	}
	if interval < time.Second {
		interval = defaultReconcileInterval
	}
	return &Runner{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		interval:  interval,
		logger:    logger,
	}, nil
}

// Start schedules the reconciliation job and begins running it
// asynchronously. SingletonMode keeps passes from piling up behind a
// slow daemon; the store transition guards make overlap harmless
// anyway.
func (runner *Runner) Start(ctx context.Context) error {
	_, err := runner.scheduler.Every(runner.interval).
		SingletonMode().
		Do(func() { runner.runPass(ctx) })
	if err != nil {
		return err
	}
	runner.scheduler.StartAsync()
	runner.logger.Info("webhook reconciler scheduled", zap.Duration("interval", runner.interval))
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (runner *Runner) Stop() {
	runner.scheduler.Stop()
}

func (runner *Runner) runPass(ctx context.Context) {
	stats, err := runner.service.ProcessWebhooks(ctx)
	if err != nil {
		runner.logger.Warn("reconcile pass failed", zap.Error(err))
		return
	}
	if stats.Processed > 0 {
		runner.logger.Info("reconcile pass complete",
			zap.Int("processed", stats.Processed),
			zap.Int("settled", stats.Settled),
			zap.Int("webhooks_sent", stats.WebhooksSent),
		)
	}
}
