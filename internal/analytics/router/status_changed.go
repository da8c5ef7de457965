package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/menuboard-backend/internal/analytics/types"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/registry"
)

type statusChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newStatusChangedHandler(writer Writer, logg *logger.Logger) Handler {
	return &statusChangedHandler{writer: writer, logg: logg}
}

func (h *statusChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_status_changed")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID.String(),
		"from":       event.From,
		"to":         event.To,
	})

	payloadJSON, err := types.JSONColumn(event)
	if err != nil {
		return registry.Permanent(fmt.Errorf("encode payload json: %w", err))
	}
	row := types.OrderEventRow{
		EventID:        envelope.EventID,
		EventType:      string(envelope.EventType),
		OccurredAt:     envelope.OccurredAt,
		TenantID:       event.TenantID.String(),
		OrderID:        event.OrderID.String(),
		Status:         event.To.String(),
		ActorKind:      types.NullString(envelope.ActorKind),
		PreviousStatus: types.NullString(event.From.String()),
		Payload:        payloadJSON,
	}
	if err := insertRow(logCtx, h.writer, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}
	h.logg.Info(logCtx, "order_status_changed row inserted")
	return nil
}
