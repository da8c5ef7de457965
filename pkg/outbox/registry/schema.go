// Package registry describes every event the outbox can carry: which
// aggregate owns it, which payload type its data decodes into and which topic
// it is published on.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/payloads"
)

// CurrentVersion is the envelope version written by the API.
const CurrentVersion = 1

type schema struct {
	aggregate enums.OutboxAggregateType
	versions  map[int]func() any
}

var schemas = map[enums.OutboxEventType]schema{
	enums.EventOrderCreated: {
		aggregate: enums.AggregateOrder,
		versions: map[int]func() any{
			1: func() any { return &payloads.OrderCreatedEvent{} },
		},
	},
	enums.EventOrderStatusChanged: {
		aggregate: enums.AggregateOrder,
		versions: map[int]func() any{
			1: func() any { return &payloads.OrderStatusChangedEvent{} },
		},
	},
}

// Known reports whether the event type has a schema.
func Known(eventType enums.OutboxEventType) bool {
	_, ok := schemas[eventType]
	return ok
}

// Decode unmarshals data into the payload type registered for the event type
// and envelope version. A version <= 0 means CurrentVersion. Failures are
// permanent since redelivering the same bytes cannot fix them.
func Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	sc, ok := schemas[eventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", eventType))
	}
	if version <= 0 {
		version = CurrentVersion
	}
	newPayload, ok := sc.versions[version]
	if !ok {
		return nil, Permanent(fmt.Errorf("no decoder for %s@v%d", eventType, version))
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, Permanent(fmt.Errorf("payload missing for %s", eventType))
	}

	payload := newPayload()
	if err := json.Unmarshal(trimmed, payload); err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", eventType, err))
	}
	return payload, nil
}
