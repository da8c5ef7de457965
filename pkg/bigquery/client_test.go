package bigquery

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
)

func TestIndexTables(t *testing.T) {
	tables, err := indexTables([]TableSpec{{Name: " order_events ", PartitionField: "occurred_at"}})
	require.NoError(t, err)
	require.Contains(t, tables, "order_events")
	assert.Equal(t, "occurred_at", tables["order_events"].PartitionField)

	_, err = indexTables(nil)
	assert.ErrorIs(t, err, errTableNameRequired)

	_, err = indexTables([]TableSpec{{Name: "  "}})
	assert.ErrorIs(t, err, errTableNameRequired)

	_, err = indexTables([]TableSpec{{Name: "a"}, {Name: "a "}})
	assert.ErrorContains(t, err, "configured twice")
}

func TestTableMetadataPartitioning(t *testing.T) {
	schema := bigquery.Schema{{Name: "occurred_at", Type: bigquery.TimestampFieldType}}

	md := tableMetadata(TableSpec{Name: "t", Schema: schema, PartitionField: "occurred_at"})
	require.NotNil(t, md.TimePartitioning)
	assert.Equal(t, bigquery.DayPartitioningType, md.TimePartitioning.Type)
	assert.Equal(t, "occurred_at", md.TimePartitioning.Field)
	assert.Equal(t, schema, md.Schema)

	assert.Nil(t, tableMetadata(TableSpec{Name: "t", Schema: schema}).TimePartitioning)
}

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "d"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{}, nil)
	assert.ErrorIs(t, err, errDatasetRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d"}, nil)
	assert.ErrorIs(t, err, errTableNameRequired)
}

func TestAPIErrorClassification(t *testing.T) {
	notFound := fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})
	assert.True(t, isNotFound(notFound))
	assert.False(t, isConflict(notFound))
	assert.True(t, isConflict(&googleapi.Error{Code: http.StatusConflict}))
	assert.Zero(t, apiCode(fmt.Errorf("plain")))
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	err := c.InsertRows(context.Background(), "order_events", []Row{{InsertID: "1"}})
	assert.ErrorIs(t, err, errClientNotInitialized)
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errClientNotInitialized)
}
