package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderItemsTotal(t *testing.T) {
	items := OrderItems{
		{ProductID: uuid.New(), Name: "Burger", Price: decimal.RequireFromString("10.00"), Quantity: 2},
		{ProductID: uuid.New(), Name: "Soda", Price: decimal.RequireFromString("5.50"), Quantity: 1},
	}
	assert.True(t, items.Total().Equal(decimal.RequireFromString("25.50")))
}

func TestOrderItemsScanValue(t *testing.T) {
	id := uuid.New()
	items := OrderItems{{ProductID: id, Name: "Pastel", Price: decimal.RequireFromString("7.25"), Quantity: 3}}

	raw, err := items.Value()
	require.NoError(t, err)

	var decoded OrderItems
	require.NoError(t, decoded.Scan([]byte(raw.(string))))
	require.Len(t, decoded, 1)
	assert.Equal(t, id, decoded[0].ProductID)
	assert.True(t, decoded[0].Price.Equal(decimal.RequireFromString("7.25")))
	assert.Equal(t, 3, decoded[0].Quantity)
}

func TestOrderItemsScanNilAndBadType(t *testing.T) {
	var items OrderItems
	require.NoError(t, items.Scan(nil))
	assert.NotNil(t, items)
	assert.Len(t, items, 0)

	assert.Error(t, items.Scan(42))
}

func TestOrderItemsCloneIsIndependent(t *testing.T) {
	items := OrderItems{{Name: "Tea", Price: decimal.NewFromInt(3), Quantity: 1}}
	clone := items.Clone()
	clone[0].Quantity = 9
	assert.Equal(t, 1, items[0].Quantity)
}
