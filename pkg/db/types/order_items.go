package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is the frozen copy of a cart line stored inside an order. It has
// no link back to the catalog so later product edits never reach it.
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderItems persists as a JSON array column.
type OrderItems []OrderItem

// Total sums every item subtotal.
func (items OrderItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Clone returns a deep copy so callers cannot mutate a stored snapshot.
func (items OrderItems) Clone() OrderItems {
	if items == nil {
		return nil
	}
	out := make(OrderItems, len(items))
	copy(out, items)
	return out
}

func (items OrderItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]OrderItem(items))
	if err != nil {
		return nil, fmt.Errorf("OrderItems: marshal: %w", err)
	}
	return string(raw), nil
}

func (items *OrderItems) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*items = OrderItems{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("OrderItems: unsupported Scan type %T", src)
	}
	var out []OrderItem
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("OrderItems: unmarshal: %w", err)
	}
	if out == nil {
		out = []OrderItem{}
	}
	*items = OrderItems(out)
	return nil
}
