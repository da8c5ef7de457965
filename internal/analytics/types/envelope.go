package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/menuboard-backend/pkg/enums"
)

// Envelope is an order event rebuilt from a Pub/Sub message: identity and
// routing from the attributes, timing and body from the stored payload.
// ActorKind is "owner" for dashboard transitions and "customer" for
// storefront submissions; it is empty for events written without an actor.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	ActorKind     string
	Version       int
	OccurredAt    time.Time
	Payload       json.RawMessage
}
