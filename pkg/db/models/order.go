package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/menuboard-backend/pkg/db/types"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
)

// Order is a submitted customer order. Items and Total are written once at
// creation; only Status and UpdatedAt change afterwards.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TenantID        uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index:idx_orders_tenant_created,priority:1"`
	TenantName      string               `gorm:"column:tenant_name;not null"`
	CartID          *uuid.UUID           `gorm:"column:cart_id;type:uuid"`
	CustomerName    string               `gorm:"column:customer_name;not null"`
	CustomerPhone   string               `gorm:"column:customer_phone;not null"`
	CustomerAddress string               `gorm:"column:customer_address;not null;default:''"`
	CustomerNotes   string               `gorm:"column:customer_notes;not null;default:''"`
	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	PaymentMethod   enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	Items           dbtypes.OrderItems   `gorm:"column:items;type:jsonb;not null"`
	Total           decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	Status          enums.OrderStatus    `gorm:"column:status;type:text;not null"`
	CreatedAt       time.Time            `gorm:"column:created_at;not null;index:idx_orders_tenant_created,priority:2,sort:desc"`
	UpdatedAt       *time.Time           `gorm:"column:updated_at"`
}
