package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONColumn(t *testing.T) {
	cases := []struct {
		name  string
		in    any
		valid bool
		want  string
	}{
		{"nil", nil, false, ""},
		{"empty raw", json.RawMessage{}, false, ""},
		{"null literal", json.RawMessage("null"), false, ""},
		{"raw passthrough", json.RawMessage(`{"a":1}`), true, `{"a":1}`},
		{"bytes", []byte(`[1,2]`), true, `[1,2]`},
		{"struct", struct {
			Total string `json:"total"`
		}{"25.50"}, true, `{"total":"25.50"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := JSONColumn(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, got.Valid)
			assert.Equal(t, tc.want, got.JSONVal)
		})
	}

	_, err := JSONColumn(make(chan int))
	assert.Error(t, err)
}

func TestSchemaMatchesRowTags(t *testing.T) {
	names := make([]string, 0, len(OrderEventSchema))
	for _, f := range OrderEventSchema {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"event_id", "event_type", "occurred_at", "tenant_id", "order_id", "status",
		"actor_kind", "previous_status", "delivery_method", "payment_method", "item_count", "total_cents", "payload",
	}, names)
	assert.False(t, NullString("").Valid)
	assert.True(t, NullInt64(0).Valid)
}
