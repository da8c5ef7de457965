package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/registry"
)

const (
	workerName     = "outbox-publisher"
	publishTimeout = 15 * time.Second
	maxIdleBackoff = 10 * time.Second
	jitter         = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(tx *gorm.DB) (int64, error)
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

// RelayParams collects the relay's collaborators. Metrics may be nil.
type RelayParams struct {
	Outbox  config.OutboxConfig
	Logger  *logger.Logger
	DB      txRunner
	Store   outboxStore
	DLQ     deadLetters
	Routes  resolver
	Sender  sender
	Metrics *metrics.WorkerMetrics
}

// Relay moves committed outbox rows onto Pub/Sub. Rows are locked with
// SKIP LOCKED, so several relays can run side by side.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	store       outboxStore
	dlq         deadLetters
	routes      resolver
	sender      sender
	metrics     *metrics.WorkerMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case p.Routes == nil:
		return nil, errors.New("event routes are required")
	case p.Sender == nil:
		return nil, errors.New("sender is required")
	}
	return &Relay{
		logg:        p.Logger,
		db:          p.DB,
		store:       p.Store,
		dlq:         p.DLQ,
		routes:      p.Routes,
		sender:      p.Sender,
		metrics:     p.Metrics,
		batchSize:   positiveOr(p.Outbox.BatchSize, 50),
		maxAttempts: positiveOr(p.Outbox.MaxAttempts, 10),
		poll:        time.Duration(positiveOr(p.Outbox.PollIntervalMS, 500)) * time.Millisecond,
	}, nil
}

// Run drains the outbox until ctx is done. A full batch is followed
// immediately by another; an empty one waits one poll interval; a failed one
// backs off exponentially up to maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	wait := r.poll
	for {
		n, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case n > 0:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}

		timer := time.NewTimer(wait + time.Duration(rand.Int64N(int64(jitter))))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// drain handles one batch in a single transaction and returns the number of
// rows it looked at.
func (r *Relay) drain(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveDuration(workerName, time.Since(start)) }()

	n := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		n = len(rows)
		for _, row := range rows {
			if err := r.deliver(ctx, tx, row); err != nil {
				return err
			}
		}
		if pending, err := r.store.CountPending(tx); err == nil {
			r.metrics.SetBacklog(workerName, pending)
		}
		return nil
	})
	return n, err
}

// deliver publishes one row and records the outcome. Only bookkeeping
// failures are returned; publish failures are written to the row.
func (r *Relay) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := r.routes.Resolve(row)
	if err != nil {
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = r.logg.WithFields(ctx, map[string]any{"event_id": resolved.Envelope.EventID, "topic": resolved.Topic})

	err = r.sender.Send(ctx, resolved.Topic, message(row, resolved))
	switch {
	case err == nil:
		if err := r.store.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.metrics.IncSuccess(workerName)
		r.logg.Info(ctx, "outbox event published")
		return nil
	case registry.IsPermanent(err):
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	}

	r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
	r.metrics.IncFailure(workerName)
	if err := r.store.MarkFailedTx(tx, row.ID, err); err != nil {
		return fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	return nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": reason,
	}), "outbox event dead-lettered")
	r.metrics.IncFailure(workerName)

	entry := row.DeadLetter(reason, cause, time.Now().UTC())
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.store.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

// message forwards the stored envelope verbatim. Attributes let subscribers
// filter without decoding the body.
func message(row models.OutboxEvent, resolved *registry.Resolved) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
