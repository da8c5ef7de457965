package types

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
)

// OrderEventRow is one row of the order_events table: one per order
// lifecycle event, with status columns describing the state after it.
type OrderEventRow struct {
	EventID        string              `bigquery:"event_id"`
	EventType      string              `bigquery:"event_type"`
	OccurredAt     time.Time           `bigquery:"occurred_at"`
	TenantID       string              `bigquery:"tenant_id"`
	OrderID        string              `bigquery:"order_id"`
	Status         string              `bigquery:"status"`
	ActorKind      bigquery.NullString `bigquery:"actor_kind"`
	PreviousStatus bigquery.NullString `bigquery:"previous_status"`
	DeliveryMethod bigquery.NullString `bigquery:"delivery_method"`
	PaymentMethod  bigquery.NullString `bigquery:"payment_method"`
	ItemCount      bigquery.NullInt64  `bigquery:"item_count"`
	TotalCents     bigquery.NullInt64  `bigquery:"total_cents"`
	Payload        bigquery.NullJSON   `bigquery:"payload"`
}

// OrderEventSchema is used when the table has to be created. It is
// partitioned by day on occurred_at.
var OrderEventSchema = bigquery.Schema{
	{Name: "event_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: bigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "tenant_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "order_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "status", Type: bigquery.StringFieldType, Required: true},
	{Name: "actor_kind", Type: bigquery.StringFieldType},
	{Name: "previous_status", Type: bigquery.StringFieldType},
	{Name: "delivery_method", Type: bigquery.StringFieldType},
	{Name: "payment_method", Type: bigquery.StringFieldType},
	{Name: "item_count", Type: bigquery.IntegerFieldType},
	{Name: "total_cents", Type: bigquery.IntegerFieldType},
	{Name: "payload", Type: bigquery.JSONFieldType},
}

// NullString maps "" to NULL.
func NullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func NullInt64(n int64) bigquery.NullInt64 {
	return bigquery.NullInt64{Int64: n, Valid: true}
}

// JSONColumn encodes v for a JSON column. nil and empty raw input become
// NULL; raw JSON is passed through unchanged.
func JSONColumn(v any) (bigquery.NullJSON, error) {
	var raw []byte
	switch val := v.(type) {
	case nil:
		return bigquery.NullJSON{}, nil
	case json.RawMessage:
		raw = val
	case []byte:
		raw = val
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return bigquery.NullJSON{}, fmt.Errorf("encode json column: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 || string(raw) == "null" {
		return bigquery.NullJSON{}, nil
	}
	return bigquery.NullJSON{JSONVal: string(raw), Valid: true}, nil
}
