package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
)

type ledgerRow struct {
	ID   int
	Name string
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	return NewFromGorm(conn)
}

func countRows(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Name: "committed"}).Error
	}))
	assert.EqualValues(t, 1, countRows(t, c))

	boom := errors.New("boom")
	err := c.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerRow{Name: "rolled"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, countRows(t, c))

	assert.Panics(t, func() {
		_ = c.WithTx(ctx, func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerRow{Name: "panicked"}).Error)
			panic("kaboom")
		})
	})
	assert.EqualValues(t, 1, countRows(t, c))
}

func TestPing(t *testing.T) {
	assert.NoError(t, newTestClient(t).Ping(context.Background()))
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	assert.Error(t, err)
}

func TestNewOpensSQLite(t *testing.T) {
	c, err := New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: "file::memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.True(t, IsSQLite(c.DB()))
}

func TestDialectorFor(t *testing.T) {
	_, err := dialectorFor(config.DBConfig{DSN: "file::memory:", Driver: "SQLite"})
	require.NoError(t, err)

	d, err := dialectorFor(config.DBConfig{DSN: "postgres://localhost/menuboard"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = dialectorFor(config.DBConfig{DSN: "x", Driver: "mysql"})
	assert.Error(t, err)
}

func TestIsSQLite(t *testing.T) {
	assert.True(t, IsSQLite(newTestClient(t).DB()))
	assert.False(t, IsSQLite(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_tenants_slug"}
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "uq_tenants_slug"))
	assert.False(t, IsUniqueViolation(pgErr, "uq_users_email"))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: tenants.slug"), ""))
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
}

func TestGormLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Format: logger.FormatJSON, Output: &buf})
	gl := newGormLogger(logg, config.DBConfig{SlowQuery: 50 * time.Millisecond})
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(ctx, time.Now(), stmt, nil)
	gl.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "fast statements and not-found stay quiet")

	gl.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), "slow sql statement")
	assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)

	buf.Reset()
	gl.Trace(ctx, time.Now(), stmt, errors.New("relation missing"))
	assert.Contains(t, buf.String(), "sql statement failed")

	buf.Reset()
	gl.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), stmt, errors.New("relation missing"))
	assert.Empty(t, buf.String())

	assert.Equal(t, gormlogger.Discard, newGormLogger(nil, config.DBConfig{}))
}
