package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	cases := []struct {
		code      Code
		status    int
		retryable bool
		details   bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true},
		{CodeUnauthorized, http.StatusUnauthorized, false, false},
		{CodeNotFound, http.StatusNotFound, false, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, false, true},
		{CodeRateLimit, http.StatusTooManyRequests, false, false},
		{CodeInternal, http.StatusInternalServerError, true, false},
		{CodeDependency, http.StatusServiceUnavailable, true, true},
		{CodeEmptyCart, http.StatusBadRequest, false, false},
		{CodeMissingContactInfo, http.StatusBadRequest, false, true},
		{CodeMissingAddress, http.StatusBadRequest, false, false},
		{CodeSubmissionFailed, http.StatusServiceUnavailable, true, false},
		{CodeSubmissionInProgress, http.StatusConflict, true, false},
		{CodeInvalidCredentials, http.StatusUnauthorized, false, false},
		{CodeEmailInUse, http.StatusConflict, false, false},
		{CodeWeakPassword, http.StatusBadRequest, false, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			meta := MetadataFor(tc.code)
			assert.Equal(t, tc.status, meta.HTTPStatus)
			assert.Equal(t, tc.retryable, meta.Retryable)
			assert.Equal(t, tc.details, meta.DetailsAllowed)
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}
}

func TestUnknownCodeReadsAsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stdErrors.New("plain")))
}

func TestConstructors(t *testing.T) {
	e := Newf(CodeValidation, "field %s missing", "name").WithDetails(map[string]any{"field": "name"})
	assert.Equal(t, CodeValidation, e.Code())
	assert.Equal(t, "field name missing", e.Message())
	assert.NotNil(t, e.Details())
	assert.Equal(t, "VALIDATION_ERROR: field name missing", e.Error())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "saving order")
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "boom")
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("ctx: %w", wrapped)))
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	err := fmt.Errorf("placing order: %w", New(CodeMissingAddress, "address required"))
	assert.True(t, IsCode(err, CodeMissingAddress))
	assert.False(t, IsCode(err, CodeEmptyCart))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
	assert.Nil(t, As(nil))
}

func TestDumpCapturesPostgresDiagnostics(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_tenants_slug", TableName: "tenants", Message: "duplicate key"}
	d := Dump(Wrap(CodeConflict, pgxErr, "create tenant"))
	assert.Equal(t, CodeConflict, d.Code)
	assert.Equal(t, "23505", d.PGCode)
	assert.Equal(t, "idx_tenants_slug", d.PGConstraint)
	require.Len(t, d.Chain, 2)

	pqErr := &pq.Error{Code: "23503", Table: "orders", Column: "tenant_id"}
	d = Dump(fmt.Errorf("insert: %w", pqErr))
	assert.Equal(t, "23503", d.PGCode)
	assert.Equal(t, "orders", d.PGTable)

	fields := Dump(stdErrors.New("plain")).Fields()
	assert.Equal(t, "plain", fields["error"])
	assert.NotContains(t, fields, "pg_code")
}
