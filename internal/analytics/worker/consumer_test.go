package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/menuboard-backend/internal/analytics/router"
	"github.com/angelmondragon/menuboard-backend/internal/analytics/types"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/registry"
)

func TestDecodeMessagePrefersBodyFields(t *testing.T) {
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := message(t, outbox.PayloadEnvelope{
		Version:    1,
		EventID:    "evt-body",
		OccurredAt: occurred,
		Actor:      &outbox.ActorRef{TenantID: uuid.New(), Kind: outbox.ActorKindOwner},
		Data:       json.RawMessage(`{"orderId":"o-1"}`),
	}, map[string]string{"event_id": "evt-attr"})

	env, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "evt-body", env.EventID)
	assert.Equal(t, enums.EventOrderCreated, env.EventType)
	assert.Equal(t, enums.AggregateOrder, env.AggregateType)
	assert.Equal(t, occurred, env.OccurredAt)
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, outbox.ActorKindOwner, env.ActorKind)
}

func TestDecodeMessageFallsBackToAttributes(t *testing.T) {
	msg := message(t, outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, map[string]string{
		"event_id":   "evt-attr",
		"created_at": "2026-03-01T12:00:00Z",
	})

	env, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "evt-attr", env.EventID)
	assert.Equal(t, 2026, env.OccurredAt.Year())
	assert.Empty(t, env.ActorKind)
}

func TestDecodeMessageRejectsMissingAttributes(t *testing.T) {
	for _, drop := range []string{"event_type", "aggregate_type", "aggregate_id"} {
		t.Run(drop, func(t *testing.T) {
			msg := message(t, outbox.PayloadEnvelope{EventID: uuid.NewString()}, nil)
			delete(msg.Attributes, drop)
			_, err := decodeMessage(msg)
			assert.Error(t, err)
		})
	}
}

func TestConsumeVerdicts(t *testing.T) {
	cases := []struct {
		name        string
		data        []byte
		ledger      *memLedger
		handlerErr  error
		want        verdict
		wantHandled bool
		wantRelease bool
	}{
		{name: "recorded", want: ack, wantHandled: true},
		{name: "duplicate", ledger: &memLedger{seen: true}, want: ack},
		{name: "malformed body", data: []byte("not json"), want: ack},
		{name: "ledger down", ledger: &memLedger{err: errors.New("redis")}, want: nack},
		{name: "unsupported", handlerErr: fmt.Errorf("%w: x", router.ErrUnsupportedEventType), want: ack, wantHandled: true},
		{name: "poison payload", handlerErr: registry.Permanent(errors.New("bad json")), want: ack, wantHandled: true},
		{name: "warehouse down", handlerErr: errors.New("bigquery 503"), want: nack, wantHandled: true, wantRelease: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := tc.ledger
			if l == nil {
				l = &memLedger{}
			}
			h := &recordingHandler{err: tc.handlerErr}
			c := &Consumer{handler: h, ledger: l, logg: logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard})}

			msg := message(t, outbox.PayloadEnvelope{
				Version:    1,
				EventID:    uuid.NewString(),
				OccurredAt: time.Now().UTC(),
				Data:       json.RawMessage(`{"orderId":"o-1"}`),
			}, nil)
			if tc.data != nil {
				msg.Data = tc.data
			}

			assert.Equal(t, tc.want, c.consume(context.Background(), msg))
			assert.Equal(t, tc.wantHandled, h.called)
			assert.Equal(t, tc.wantRelease, l.released)
		})
	}
}

func TestNewConsumerRequiresDependencies(t *testing.T) {
	_, err := NewConsumer(nil, HandlerFunc(func(context.Context, types.Envelope) error { return nil }), &memLedger{}, logger.New(logger.Options{}), nil)
	assert.Error(t, err)
}

func message(t *testing.T, env outbox.PayloadEnvelope, attrs map[string]string) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	base := map[string]string{
		"event_type":     "order_created",
		"aggregate_type": "order",
		"aggregate_id":   uuid.NewString(),
	}
	for k, v := range attrs {
		base[k] = v
	}
	return &gcppubsub.Message{ID: "msg-1", Data: data, Attributes: base}
}

type recordingHandler struct {
	called bool
	err    error
}

func (h *recordingHandler) Handle(context.Context, types.Envelope) error {
	h.called = true
	return h.err
}

type memLedger struct {
	seen     bool
	err      error
	released bool
}

func (m *memLedger) Claim(context.Context, uuid.UUID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return !m.seen, nil
}

func (m *memLedger) Release(context.Context, uuid.UUID) error {
	m.released = true
	return nil
}
