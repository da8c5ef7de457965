package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/menuboard-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per submitted order.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID            `json:"orderId"`
	TenantID       uuid.UUID            `json:"tenantId"`
	Status         enums.OrderStatus    `json:"status"`
	DeliveryMethod enums.DeliveryMethod `json:"deliveryMethod"`
	PaymentMethod  enums.PaymentMethod  `json:"paymentMethod"`
	ItemCount      int                  `json:"itemCount"`
	Total          decimal.Decimal      `json:"total"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// OrderStatusChangedEvent is emitted for every applied status transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"orderId"`
	TenantID  uuid.UUID         `json:"tenantId"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changedAt"`
}
