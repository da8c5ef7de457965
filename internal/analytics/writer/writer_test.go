package writer

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/menuboard-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/menuboard-backend/pkg/bigquery"
)

type insertCall struct {
	table string
	ids   []string
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []pkgbigquery.Row) error {
	call := insertCall{table: table}
	for _, row := range rows {
		call.ids = append(call.ids, row.InsertID)
	}
	f.calls = append(f.calls, call)
	if len(f.calls) <= len(f.responses) {
		return f.responses[len(f.calls)-1]
	}
	return nil
}

func newTestWriter(t *testing.T, responses ...error) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{responses: responses}
	w, err := newWriter(fake, Config{OrderEventsTable: "order_events"})
	require.NoError(t, err)
	w.sleep = func(context.Context, time.Duration) error { return nil }
	return w, fake
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{OrderEventsTable: "order_events"})
	assert.Error(t, err)

	_, err = newWriter(&fakeInserter{}, Config{OrderEventsTable: " "})
	assert.Error(t, err)

	w, err := newWriter(&fakeInserter{}, Config{OrderEventsTable: "order_events", RetryPolicy: RetryPolicy{InitialBackoff: 5 * time.Second}})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxAttempts, w.retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, w.retry.MaximumBackoff)
}

func TestInsertOrderEventUsesEventIDAsInsertID(t *testing.T) {
	w, fake := newTestWriter(t)

	require.NoError(t, w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-1"}))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "order_events", fake.calls[0].table)
	assert.Equal(t, []string{"evt-1"}, fake.calls[0].ids)
}

func TestInsertRetriesTransientError(t *testing.T) {
	w, fake := newTestWriter(t, &googleapi.Error{Code: http.StatusServiceUnavailable}, nil)

	require.NoError(t, w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-1"}))
	assert.Len(t, fake.calls, 2)
}

func TestInsertStopsOnPermanentError(t *testing.T) {
	w, fake := newTestWriter(t, &googleapi.Error{Code: http.StatusBadRequest})

	err := w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-1"})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Len(t, fake.calls, 1)
}

func TestInsertGivesUpAfterMaxAttempts(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "down")
	w, fake := newTestWriter(t, unavailable, unavailable, unavailable, unavailable)

	err := w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-1"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Len(t, fake.calls, defaultMaxAttempts)
}

func TestInsertStopsWhenContextCanceled(t *testing.T) {
	w, fake := newTestWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "evt-1"}), context.Canceled)
	assert.Empty(t, fake.calls)
}

func TestRetrySendsOnlyFailedRows(t *testing.T) {
	partial := cbigquery.PutMultiError{{
		InsertID: "b",
		RowIndex: 1,
		Errors:   cbigquery.MultiError{&cbigquery.Error{Reason: "backendError"}},
	}}
	w, fake := newTestWriter(t, partial, nil)

	rows := []pkgbigquery.Row{{InsertID: "a"}, {InsertID: "b"}, {InsertID: "c"}}
	require.NoError(t, w.insertWithRetry(context.Background(), rows))
	require.Len(t, fake.calls, 2)
	assert.Equal(t, []string{"a", "b", "c"}, fake.calls[0].ids)
	assert.Equal(t, []string{"b"}, fake.calls[1].ids)
}

func TestIsRetryable(t *testing.T) {
	rowErr := func(reason string) cbigquery.PutMultiError {
		return cbigquery.PutMultiError{{Errors: cbigquery.MultiError{&cbigquery.Error{Reason: reason}}}}
	}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"wrapped api error", fmt.Errorf("insert: %w", &googleapi.Error{Code: http.StatusBadGateway}), true},
		{"grpc unavailable", status.Error(codes.Unavailable, "x"), true},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "x"), false},
		{"row backend error", rowErr("backendError"), true},
		{"row stopped", rowErr("stopped"), true},
		{"row invalid", rowErr("invalid"), false},
		{"empty put multi error", cbigquery.PutMultiError{}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}
