package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/menuboard-backend/internal/analytics/types"
	"github.com/angelmondragon/menuboard-backend/internal/analytics/writer"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/registry"
)

// ErrUnsupportedEventType is returned for events the warehouse does not track.
var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router fans decoded order events out to one handler per event type.
type Router struct {
	handlers map[enums.OutboxEventType]Handler
}

// NewRouter installs the default row builders. overrides replace a default
// handler; overrides for event types without a default are ignored.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	switch {
	case writer == nil:
		return nil, errors.New("writer is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}

	r := &Router{handlers: map[enums.OutboxEventType]Handler{
		enums.EventOrderCreated:       newOrderCreatedHandler(writer, logg),
		enums.EventOrderStatusChanged: newStatusChangedHandler(writer, logg),
	}}
	for eventType, h := range overrides {
		if _, known := r.handlers[eventType]; known && h != nil {
			r.handlers[eventType] = h
		}
	}
	return r, nil
}

// Handle decodes the payload and dispatches it. Decode failures come back
// wrapped as registry.PermanentError.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	h, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload, err := registry.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	if err != nil {
		return err
	}
	return h.Handle(ctx, envelope, payload)
}

// insertRow stores row and marks errors BigQuery will never accept as
// permanent so the consumer acks instead of redelivering forever.
func insertRow(ctx context.Context, w Writer, row types.OrderEventRow) error {
	err := w.InsertOrderEvent(ctx, row)
	if err == nil || writer.IsRetryable(err) || errors.Is(err, context.Canceled) {
		return err
	}
	return registry.Permanent(err)
}
