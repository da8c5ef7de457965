package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActorKindOwner    = "owner"
	ActorKindCustomer = "customer"
)

// ActorRef records who caused an event. Storefront customers are anonymous,
// so only owner actors carry a user id.
type ActorRef struct {
	UserID   *uuid.UUID `json:"userId,omitempty"`
	TenantID uuid.UUID  `json:"tenantId"`
	Kind     string     `json:"kind"`
}

// OwnerActor is a dashboard user acting on their tenant. A nil userID is
// left out of the payload.
func OwnerActor(userID, tenantID uuid.UUID) *ActorRef {
	actor := &ActorRef{TenantID: tenantID, Kind: ActorKindOwner}
	if userID != uuid.Nil {
		actor.UserID = &userID
	}
	return actor
}

func CustomerActor(tenantID uuid.UUID) *ActorRef {
	return &ActorRef{TenantID: tenantID, Kind: ActorKindCustomer}
}

// PayloadEnvelope is the JSON body of an outbox row and of the Pub/Sub
// message published from it. EventID equals the outbox row id.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
