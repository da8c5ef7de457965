package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/menuboard-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	defaultTerminalAttempt = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeleteSettledBefore(tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

type dlqPruner interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// RetentionJobParams configure the outbox retention job.
type RetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Outbox           outboxPruner
	DLQ              dlqPruner
	OutboxRetention  time.Duration
	DLQRetention     time.Duration
	TerminalAttempts int
}

// NewRetentionJob builds the job that trims settled outbox rows and old
// dead letters.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.DLQ == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	job := &retentionJob{
		logg:      params.Logger,
		db:        params.DB,
		outbox:    params.Outbox,
		dlq:       params.DLQ,
		outboxTTL: params.OutboxRetention,
		dlqTTL:    params.DLQRetention,
		terminal:  params.TerminalAttempts,
		now:       time.Now,
	}
	if job.outboxTTL <= 0 {
		job.outboxTTL = defaultOutboxRetention
	}
	if job.dlqTTL <= 0 {
		job.dlqTTL = defaultDLQRetention
	}
	if job.terminal <= 0 {
		job.terminal = defaultTerminalAttempt
	}
	return job, nil
}

type retentionJob struct {
	logg      *logger.Logger
	db        txRunner
	outbox    outboxPruner
	dlq       dlqPruner
	outboxTTL time.Duration
	dlqTTL    time.Duration
	terminal  int
	now       func() time.Time
}

func (j *retentionJob) Name() string { return "outbox-retention" }

func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.Add(-j.outboxTTL)
	dlqCutoff := now.Add(-j.dlqTTL)

	var events, letters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.DeleteSettledBefore(tx, outboxCutoff, j.terminal)
		if err != nil {
			return fmt.Errorf("prune outbox: %w", err)
		}
		events = n
		n, err = j.dlq.DeleteFailedBefore(tx, dlqCutoff)
		if err != nil {
			return fmt.Errorf("prune dlq: %w", err)
		}
		letters = n
		return nil
	})
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff":  outboxCutoff,
		"dlq_cutoff":     dlqCutoff,
		"events_deleted": events,
		"dlq_deleted":    letters,
	}), "outbox retention complete")
	return nil
}
