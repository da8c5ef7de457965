package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one restaurant; products and orders are partitioned by its id.
type Tenant struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null"`
	Name        string    `gorm:"column:name;not null"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
