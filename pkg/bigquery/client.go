package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"google.golang.org/api/googleapi"
)

const metadataCheckTimeout = 10 * time.Second

// TableSpec describes a table the client writes to. Schema and
// PartitionField are only used when the table has to be created.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

// Row is a single streaming insert. InsertID lets BigQuery drop replays of
// the same row on a best-effort basis.
type Row struct {
	InsertID string
	Value    any
}

type Client struct {
	client     *bigquery.Client
	dataset    *bigquery.Dataset
	projectID  string
	tables     map[string]TableSpec
	autoCreate bool
	location   string
}

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// NewClient creates a BigQuery client and makes sure the dataset and every
// table in specs exist, creating them when cfg.AutoCreate is set.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, specs ...TableSpec) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	tables, err := indexTables(specs)
	if err != nil {
		return nil, err
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	client := &Client{
		client:     bqClient,
		dataset:    bqClient.Dataset(datasetID),
		projectID:  projectID,
		tables:     tables,
		autoCreate: cfg.AutoCreate,
		location:   strings.TrimSpace(cfg.Location),
	}
	if err := client.ensureDatasetAndTables(ctx); err != nil {
		_ = bqClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"tables":  len(tables),
		}), "bigquery client initialized")
	}
	return client, nil
}

func indexTables(specs []TableSpec) (map[string]TableSpec, error) {
	if len(specs) == 0 {
		return nil, errTableNameRequired
	}
	tables := make(map[string]TableSpec, len(specs))
	for _, ts := range specs {
		ts.Name = strings.TrimSpace(ts.Name)
		if ts.Name == "" {
			return nil, errTableNameRequired
		}
		if _, dup := tables[ts.Name]; dup {
			return nil, fmt.Errorf("bigquery table %q configured twice", ts.Name)
		}
		tables[ts.Name] = ts
	}
	return tables, nil
}

func (c *Client) ensureDatasetAndTables(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
		}
		if !c.autoCreate {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		if err := c.dataset.Create(ctx, &bigquery.DatasetMetadata{Location: c.location}); err != nil && !isConflict(err) {
			return fmt.Errorf("creating dataset %q: %w", c.dataset.DatasetID, err)
		}
	}

	for name, ts := range c.tables {
		table := c.dataset.Table(name)
		if _, err := table.Metadata(ctx); err != nil {
			if !isNotFound(err) {
				return fmt.Errorf("checking table %q: %w", name, err)
			}
			if !c.autoCreate || len(ts.Schema) == 0 {
				return fmt.Errorf("table %q does not exist", name)
			}
			if err := table.Create(ctx, tableMetadata(ts)); err != nil && !isConflict(err) {
				return fmt.Errorf("creating table %q: %w", name, err)
			}
		}
	}
	return nil
}

func tableMetadata(ts TableSpec) *bigquery.TableMetadata {
	md := &bigquery.TableMetadata{Schema: ts.Schema}
	if ts.PartitionField != "" {
		md.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: ts.PartitionField,
		}
	}
	return md
}

// Ping verifies the dataset and tables are accessible.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errClientNotInitialized
	}
	return c.ensureDatasetAndTables(ctx)
}

// InsertRows streams rows into table. A partial failure comes back as a
// bigquery.PutMultiError whose RowIndex values index into rows.
func (c *Client) InsertRows(ctx context.Context, table string, rows []Row) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}

	schema := c.tables[table].Schema
	savers := make([]*bigquery.StructSaver, len(rows))
	for i, row := range rows {
		savers[i] = &bigquery.StructSaver{Schema: schema, InsertID: row.InsertID, Struct: row.Value}
	}
	return c.dataset.Table(table).Inserter().Put(ctx, savers)
}

// Close releases the BigQuery client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	return apiCode(err) == http.StatusNotFound
}

func isConflict(err error) bool {
	return apiCode(err) == http.StatusConflict
}

func apiCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return 0
}
