package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/menuboard-backend/pkg/db"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
)

const (
	defaultFetchLimit = 50
	maxErrorLen       = 1024
)

var errTxRequired = errors.New("transaction required")

// Repository reads and settles outbox_events rows. Every write takes the
// caller's transaction so it commits with the order change or the publish.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish returns the oldest unpublished rows still under
// maxAttempts (0 disables the cap). On Postgres the rows stay locked with
// SKIP LOCKED until tx ends.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	q := pending(tx)
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if !dbpkg.IsSQLite(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return settle(tx, id, map[string]any{"published_at": time.Now().UTC(), "last_error": nil})
}

// MarkFailedTx records a retryable failure and bumps attempt_count.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return settle(tx, id, map[string]any{"last_error": clip(err), "attempt_count": gorm.Expr("attempt_count + 1")})
}

// MarkTerminalTx pins attempt_count at terminalAttempts so the fetch query
// never returns the row again.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	return settle(tx, id, map[string]any{"last_error": clip(err), "attempt_count": terminalAttempts})
}

// CountPending feeds the backlog gauge. tx may be nil.
func (r *Repository) CountPending(tx *gorm.DB) (int64, error) {
	var n int64
	err := pending(r.conn(tx)).Count(&n).Error
	return n, err
}

// DeleteSettledBefore prunes rows the publisher is done with: published
// before cutoff, or terminal and created before cutoff.
func (r *Repository) DeleteSettledBefore(tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error) {
	res := r.conn(tx).
		Where("published_at < ?", cutoff).
		Or("published_at IS NULL AND attempt_count >= ? AND created_at < ?", terminalAttempts, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func pending(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.OutboxEvent{}).Where("published_at IS NULL")
}

func settle(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

func clip(err error) string {
	if err == nil {
		return ""
	}
	return truncate(err.Error())
}

func truncate(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
