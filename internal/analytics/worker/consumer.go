// Package worker pulls order events off the analytics subscription and feeds
// them to the BigQuery router.
package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/menuboard-backend/internal/analytics/router"
	"github.com/angelmondragon/menuboard-backend/internal/analytics/types"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/registry"
)

// Name labels this consumer in metrics and idempotency keys.
const Name = "analytics"

// Handler processes one decoded envelope.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	return fn(ctx, envelope)
}

type ledger interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

type verdict int

const (
	ack verdict = iota
	nack
)

// Consumer acks poison and duplicate messages and nacks transient failures
// so Pub/Sub redelivers them.
type Consumer struct {
	sub     *gcppubsub.Subscriber
	handler Handler
	ledger  ledger
	logg    *logger.Logger
	metrics *metrics.WorkerMetrics
}

// NewConsumer wires a consumer. m may be nil.
func NewConsumer(sub *gcppubsub.Subscriber, handler Handler, l ledger, logg *logger.Logger, m *metrics.WorkerMetrics) (*Consumer, error) {
	switch {
	case sub == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case l == nil:
		return nil, errors.New("idempotency ledger is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Consumer{sub: sub, handler: handler, ledger: l, logg: logg, metrics: m}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		start := time.Now()
		v := c.consume(msgCtx, msg)
		c.metrics.ObserveDuration(Name, time.Since(start))
		if v == nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) consume(ctx context.Context, msg *gcppubsub.Message) verdict {
	ctx = c.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decodeMessage(msg)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics message")
		c.metrics.IncFailure(Name)
		return ack
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":     env.EventID,
		"event_type":   env.EventType,
		"aggregate_id": env.AggregateID,
		"occurred_at":  env.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		c.logg.Warn(ctx, "dropping analytics message with non-uuid event id")
		c.metrics.IncFailure(Name)
		return ack
	}

	fresh, err := c.ledger.Claim(ctx, eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency claim failed", err)
		return nack
	}
	if !fresh {
		c.logg.Info(ctx, "duplicate analytics event skipped")
		return ack
	}

	err = c.handler.Handle(ctx, env)
	switch {
	case err == nil:
		c.metrics.IncSuccess(Name)
		c.logg.Info(ctx, "analytics event recorded")
		return ack
	case errors.Is(err, router.ErrUnsupportedEventType), registry.IsPermanent(err):
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "analytics event cannot be recorded, acking")
		c.metrics.IncFailure(Name)
		return ack
	default:
		c.logg.Error(ctx, "analytics handler failed", err)
		c.metrics.IncFailure(Name)
		if relErr := c.ledger.Release(ctx, eventID); relErr != nil {
			c.logg.Error(ctx, "idempotency release failed", relErr)
		}
		return nack
	}
}
