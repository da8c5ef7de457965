package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/menuboard-backend/internal/cart"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/menuboard-backend/pkg/db/types"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
)

// Customer is the contact block captured at checkout.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// CartClaim gives the submission exclusive access to the stored cart while
// the submit guard is held. Load returns the current contents and Consume
// empties the cart once the order is committed.
type CartClaim interface {
	Load(ctx context.Context) (*cart.Cart, error)
	Consume(ctx context.Context) error
}

// PlaceOrderInput is everything the storefront sends when submitting a cart.
// With a Claim set, Cart is only a first look and the order is built from the
// cart reloaded under the guard.
type PlaceOrderInput struct {
	Tenant         *models.Tenant
	CartID         uuid.UUID
	Cart           *cart.Cart
	Claim          CartClaim
	Customer       Customer
	DeliveryMethod string
	PaymentMethod  string
	Notes          string
}

// SetStatusInput moves one order of a tenant to a new status.
type SetStatusInput struct {
	TenantID    uuid.UUID
	OrderID     uuid.UUID
	Status      enums.OrderStatus
	ActorUserID uuid.UUID
}

// HistoryInput pages through a tenant's orders, newest first.
type HistoryInput struct {
	Limit  int
	Cursor string
	Status *enums.OrderStatus
}

// OrderDTO is the order as shown to the owner and returned to the customer.
type OrderDTO struct {
	ID             uuid.UUID            `json:"id"`
	TenantID       uuid.UUID            `json:"tenant_id"`
	TenantName     string               `json:"tenant_name"`
	Customer       Customer             `json:"customer"`
	Notes          string               `json:"notes,omitempty"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	PaymentMethod  enums.PaymentMethod  `json:"payment_method"`
	Items          dbtypes.OrderItems   `json:"items"`
	Total          decimal.Decimal      `json:"total"`
	Status         enums.OrderStatus    `json:"status"`
	AllowedNext    []enums.OrderStatus  `json:"allowed_next"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      *time.Time           `json:"updated_at,omitempty"`
}

// Snapshot is the full, newest-first order list of one tenant at a point in time.
// Seq grows with every snapshot a live feed delivers.
type Snapshot struct {
	TenantID    uuid.UUID  `json:"tenant_id"`
	Seq         uint64     `json:"seq"`
	Orders      []OrderDTO `json:"orders"`
	HasNew      bool       `json:"has_new"`
	GeneratedAt time.Time  `json:"generated_at"`
}

func newOrderDTO(o *models.Order, open bool) OrderDTO {
	items := o.Items.Clone()
	if items == nil {
		items = dbtypes.OrderItems{}
	}
	return OrderDTO{
		ID:         o.ID,
		TenantID:   o.TenantID,
		TenantName: o.TenantName,
		Customer: Customer{
			Name:    o.CustomerName,
			Phone:   o.CustomerPhone,
			Address: o.CustomerAddress,
		},
		Notes:          o.CustomerNotes,
		DeliveryMethod: o.DeliveryMethod,
		PaymentMethod:  o.PaymentMethod,
		Items:          items,
		Total:          o.Total,
		Status:         o.Status,
		AllowedNext:    AllowedTransitions(o.Status, o.DeliveryMethod, open),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func itemsFromCart(c *cart.Cart) dbtypes.OrderItems {
	lines := c.Lines()
	out := make(dbtypes.OrderItems, 0, len(lines))
	for _, line := range lines {
		out = append(out, dbtypes.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
	}
	return out
}
