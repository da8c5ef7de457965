package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/angelmondragon/menuboard-backend/pkg/redis"
)

// Bus carries "something changed" signals for a tenant's orders between
// API instances. Payloads are hints only; listeners always re-read.
type Bus interface {
	Notify(ctx context.Context, tenantID, orderID uuid.UUID) error
	Listen(ctx context.Context, tenantID uuid.UUID) (Listener, error)
}

// Listener yields change payloads until closed.
type Listener interface {
	Messages() <-chan string
	Close() error
}

type changeMessage struct {
	OrderID uuid.UUID `json:"order_id"`
}

// RedisBus publishes on menu:orders:{tenantID}.
type RedisBus struct {
	client *redisclient.Client
}

func NewRedisBus(client *redisclient.Client) (*RedisBus, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisBus{client: client}, nil
}

func (b *RedisBus) Notify(ctx context.Context, tenantID, orderID uuid.UUID) error {
	raw, err := json.Marshal(changeMessage{OrderID: orderID})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.client.OrdersChannel(tenantID.String()), string(raw))
}

func (b *RedisBus) Listen(ctx context.Context, tenantID uuid.UUID) (Listener, error) {
	sub, err := b.client.Subscribe(ctx, b.client.OrdersChannel(tenantID.String()))
	if err != nil {
		return nil, err
	}
	return sub, nil
}
