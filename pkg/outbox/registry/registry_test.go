package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/payloads"
)

func TestResolveOrderCreated(t *testing.T) {
	routes := testRoutes(t)
	orderID := uuid.New()
	row := orderRow(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{
		OrderID:        orderID,
		TenantID:       uuid.New(),
		Status:         enums.OrderStatusNew,
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodCash,
		ItemCount:      2,
		Total:          decimal.RequireFromString("25.50"),
	})

	resolved, err := routes.Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.True(t, payload.Total.Equal(decimal.RequireFromString("25.5")))
}

func TestResolveStatusChanged(t *testing.T) {
	row := orderRow(t, enums.EventOrderStatusChanged, payloads.OrderStatusChangedEvent{
		OrderID: uuid.New(),
		From:    enums.OrderStatusNew,
		To:      enums.OrderStatusPreparing,
	})

	resolved, err := testRoutes(t).Resolve(row)
	require.NoError(t, err)
	payload := resolved.Payload.(*payloads.OrderStatusChangedEvent)
	assert.Equal(t, enums.OrderStatusPreparing, payload.To)
}

func TestResolveRejectsBadRowsPermanently(t *testing.T) {
	good := orderRow(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New()})

	cases := map[string]func(r *models.OutboxEvent){
		"unknown event":      func(r *models.OutboxEvent) { r.EventType = "menu_published" },
		"aggregate mismatch": func(r *models.OutboxEvent) { r.AggregateType = "tenant" },
		"missing aggregate":  func(r *models.OutboxEvent) { r.AggregateID = uuid.Nil },
		"garbage envelope":   func(r *models.OutboxEvent) { r.Payload = json.RawMessage(`{`) },
		"null data": func(r *models.OutboxEvent) {
			r.Payload = envelope(t, 1, json.RawMessage("null"))
		},
		"unknown version": func(r *models.OutboxEvent) {
			r.Payload = envelope(t, 7, json.RawMessage(`{}`))
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			row := good
			mutate(&row)
			_, err := testRoutes(t).Resolve(row)
			require.Error(t, err)
			assert.True(t, IsPermanent(err), "expected permanent error, got %v", err)
		})
	}
}

func TestDecodeDefaultsToCurrentVersion(t *testing.T) {
	out, err := Decode(enums.EventOrderStatusChanged, 0, json.RawMessage(`{"to":"Ready"}`))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReady, out.(*payloads.OrderStatusChangedEvent).To)
	assert.True(t, Known(enums.EventOrderCreated))
	assert.False(t, Known("menu_published"))
}

func TestPermanentWrapping(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("boom")
	wrapped := Permanent(base)
	assert.ErrorIs(t, wrapped, base)
	assert.True(t, IsPermanent(wrapped))
	assert.False(t, IsPermanent(base))
}

func TestNewRoutesRequiresTopic(t *testing.T) {
	_, err := NewRoutes(config.PubSubConfig{})
	require.Error(t, err)
}

func testRoutes(t *testing.T) *Routes {
	t.Helper()
	routes, err := NewRoutes(config.PubSubConfig{OrdersTopic: "orders-topic"})
	require.NoError(t, err)
	return routes
}

func orderRow(t *testing.T, eventType enums.OutboxEventType, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return models.OutboxEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelope(t, 1, raw),
	}
}

func envelope(t *testing.T, version int, data json.RawMessage) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return raw
}
