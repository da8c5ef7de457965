// Package writer streams analytics rows into BigQuery.
package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/angelmondragon/menuboard-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/menuboard-backend/pkg/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Config controls the analytics writer behavior.
type Config struct {
	OrderEventsTable string
	RetryPolicy      RetryPolicy
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []pkgbigquery.Row) error
}

// BigQueryWriter inserts order event rows one message at a time so the
// caller can ack only once its row is stored.
type BigQueryWriter struct {
	client tableInserter
	table  string
	retry  RetryPolicy
	sleep  func(context.Context, time.Duration) error
}

// New creates a writer backed by a shared client.
func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriter(client, cfg)
}

func newWriter(client tableInserter, cfg Config) (*BigQueryWriter, error) {
	table := strings.TrimSpace(cfg.OrderEventsTable)
	if table == "" {
		return nil, errors.New("order events table is required")
	}

	retry := cfg.RetryPolicy
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = max(defaultMaximumBackoff, retry.InitialBackoff)
	}

	return &BigQueryWriter{client: client, table: table, retry: retry, sleep: sleepCtx}, nil
}

// InsertOrderEvent stores one row keyed by its event id, which doubles as
// the streaming insert id.
func (w *BigQueryWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	return w.insertWithRetry(ctx, []pkgbigquery.Row{{InsertID: row.EventID, Value: &row}})
}

// insertWithRetry re-sends only the rows BigQuery reported as failed.
func (w *BigQueryWriter) insertWithRetry(ctx context.Context, rows []pkgbigquery.Row) error {
	backoff := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !IsRetryable(err) {
			return fmt.Errorf("insert %s rows: %w", w.table, err)
		}
		rows = failedRows(rows, err)

		if err := w.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

func failedRows(rows []pkgbigquery.Row, err error) []pkgbigquery.Row {
	var pme cbigquery.PutMultiError
	if !errors.As(err, &pme) || len(pme) == 0 {
		return rows
	}
	failed := make([]pkgbigquery.Row, 0, len(pme))
	for _, rowErr := range pme {
		if rowErr.RowIndex >= 0 && rowErr.RowIndex < len(rows) {
			failed = append(failed, rows[rowErr.RowIndex])
		}
	}
	if len(failed) == 0 {
		return rows
	}
	return failed
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryable reports whether every failure inside err is transient.
// Schema or payload errors are permanent and retrying them only delays the
// poison message.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pme cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if len(pme) == 0 {
			return false
		}
		for i := range pme {
			if !rowRetryable(&pme[i]) {
				return false
			}
		}
		return true
	}

	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		return rowRetryable(rowErr)
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !IsRetryable(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableHTTPCode(apiErr.Code)
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return retryableGRPCCode(st.Code())
	}

	return errors.Is(err, context.DeadlineExceeded)
}

func rowRetryable(rowErr *cbigquery.RowInsertionError) bool {
	if rowErr == nil || len(rowErr.Errors) == 0 {
		return false
	}
	for _, inner := range rowErr.Errors {
		var bqErr *cbigquery.Error
		if errors.As(inner, &bqErr) {
			// "stopped" marks rows rejected only because a sibling row failed.
			if bqErr.Reason != "backendError" && bqErr.Reason != "stopped" && bqErr.Reason != "timeout" {
				return false
			}
			continue
		}
		if !IsRetryable(inner) {
			return false
		}
	}
	return true
}

func retryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func retryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	default:
		return false
	}
}
