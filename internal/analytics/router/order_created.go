package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/menuboard-backend/internal/analytics/types"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/registry"
)

type orderCreatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderCreatedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderCreatedHandler{writer: writer, logg: logg}
}

func (h *orderCreatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_created")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID.String(),
		"tenant_id":  event.TenantID.String(),
	})

	row, err := buildOrderCreatedRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build order event row", err)
		return err
	}
	if err := insertRow(logCtx, h.writer, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}

	h.logg.Info(logCtx, "order_created row inserted")
	return nil
}

func buildOrderCreatedRow(envelope types.Envelope, event *payloads.OrderCreatedEvent) (types.OrderEventRow, error) {
	payloadJSON, err := types.JSONColumn(event)
	if err != nil {
		return types.OrderEventRow{}, registry.Permanent(fmt.Errorf("encode payload json: %w", err))
	}

	return types.OrderEventRow{
		EventID:        envelope.EventID,
		EventType:      string(envelope.EventType),
		OccurredAt:     envelope.OccurredAt,
		TenantID:       event.TenantID.String(),
		OrderID:        event.OrderID.String(),
		Status:         event.Status.String(),
		ActorKind:      types.NullString(envelope.ActorKind),
		DeliveryMethod: types.NullString(string(event.DeliveryMethod)),
		PaymentMethod:  types.NullString(string(event.PaymentMethod)),
		ItemCount:      types.NullInt64(int64(event.ItemCount)),
		TotalCents:     types.NullInt64(event.Total.Shift(2).Round(0).IntPart()),
		Payload:        payloadJSON,
	}, nil
}
