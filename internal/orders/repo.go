package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/menuboard-backend/pkg/db"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/pagination"
)

// Repository persists orders. Reads are always scoped to a tenant.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads one order of tenantID.
func (r *Repository) FindByID(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", orderID, tenantID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate is FindByID with a row lock on Postgres.
func (r *Repository) FindForUpdate(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	q := r.db.WithContext(ctx)
	if !dbpkg.IsSQLite(r.db) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.Order
	if err := q.Where("id = ? AND tenant_id = ?", orderID, tenantID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus writes the status and updated_at of one order.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, status enums.OrderStatus, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND tenant_id = ?", orderID, tenantID).
		Updates(map[string]any{"status": status, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByTenant returns every order of tenantID, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPage returns up to limit orders strictly after cursor in newest-first order.
func (r *Repository) ListPage(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, status *enums.OrderStatus, limit int) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var rows []models.Order
	if err := q.Scopes(pagination.NewestFirst(cursor)).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
