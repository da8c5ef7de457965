package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
)

const (
	defaultInterval = 6 * time.Hour
	releaseTimeout  = 5 * time.Second
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	// Metrics may be nil.
	Metrics  *metrics.WorkerMetrics
	Interval time.Duration
}

// Service runs the registered jobs once per interval. Only the worker
// holding the lock runs a cycle, and the cycle is cut off when the lease
// expires so two workers never overlap.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.WorkerMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry, _ = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
// Failed cycles are logged and retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "maintenance cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job a single time. A failing job does not stop the
// rest; all job errors come back combined.
func (s *Service) RunOnce(ctx context.Context) (err error) {
	lease, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if lease == nil {
		s.logg.Info(ctx, "maintenance cycle held elsewhere, skipping")
		return nil
	}
	defer func() {
		// Release even when ctx was canceled by shutdown.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := lease.Release(relCtx); relErr != nil {
			s.logg.Error(ctx, "failed to release maintenance lock", relErr)
		}
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, lease.TTL())
	defer cancel()

	for _, job := range s.registry.Jobs() {
		if cycleCtx.Err() != nil {
			return multierr.Append(err, fmt.Errorf("cycle stopped before %s: %w", job.Name(), cycleCtx.Err()))
		}
		err = multierr.Append(err, s.runJob(cycleCtx, job))
	}
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	s.metrics.ObserveDuration(name, elapsed)
	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(ctx, "maintenance job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.metrics.IncSuccess(name)
	s.logg.Info(ctx, "maintenance job completed")
	return nil
}
