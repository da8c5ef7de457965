package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
)

// Routes maps event types to the Pub/Sub topic they are published on.
type Routes struct {
	topics map[enums.OutboxEventType]string
}

// Resolved is an outbox row that passed validation and is ready to publish.
type Resolved struct {
	Topic    string
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// NewRoutes sends every order event to the orders topic.
func NewRoutes(cfg config.PubSubConfig) (*Routes, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	return &Routes{topics: map[enums.OutboxEventType]string{
		enums.EventOrderCreated:       cfg.OrdersTopic,
		enums.EventOrderStatusChanged: cfg.OrdersTopic,
	}}, nil
}

// Topic returns the topic for an event type.
func (r *Routes) Topic(eventType enums.OutboxEventType) (string, bool) {
	topic, ok := r.topics[eventType]
	return topic, ok
}

// Resolve checks the row against its schema, decodes the envelope and payload
// and picks the topic. Every error it returns is permanent.
func (r *Routes) Resolve(row models.OutboxEvent) (*Resolved, error) {
	sc, ok := schemas[row.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", row.EventType))
	}
	if sc.aggregate != row.AggregateType {
		return nil, Permanent(fmt.Errorf("aggregate mismatch: %s carries %s, got %s", row.EventType, sc.aggregate, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate_id"))
	}
	topic, ok := r.Topic(row.EventType)
	if !ok {
		return nil, Permanent(fmt.Errorf("no topic routed for %s", row.EventType))
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	payload, err := Decode(row.EventType, env.Version, env.Data)
	if err != nil {
		return nil, err
	}
	return &Resolved{Topic: topic, Envelope: env, Payload: payload}, nil
}
