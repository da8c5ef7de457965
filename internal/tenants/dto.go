package tenants

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
)

const displayNameFallbackFormat = "Restaurante %s"

// TenantDTO is the owner-facing restaurant profile.
type TenantDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Slug        string    `json:"slug"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateTenantDTO holds what the repo needs to persist a new tenant.
type CreateTenantDTO struct {
	OwnerUserID uuid.UUID
	Name        string
	Slug        string
}

func (c CreateTenantDTO) ToModel() *models.Tenant {
	return &models.Tenant{
		OwnerUserID: c.OwnerUserID,
		Name:        strings.TrimSpace(c.Name),
		Slug:        c.Slug,
	}
}

// DisplayName is the name shown to customers; a tenant without a name is
// shown as "Restaurante {slug}".
func DisplayName(t *models.Tenant) string {
	if t == nil {
		return ""
	}
	if name := strings.TrimSpace(t.Name); name != "" {
		return name
	}
	return fmt.Sprintf(displayNameFallbackFormat, t.Slug)
}

func FromModel(t *models.Tenant) *TenantDTO {
	if t == nil {
		return nil
	}
	return &TenantDTO{
		ID:          t.ID,
		Name:        t.Name,
		DisplayName: DisplayName(t),
		Slug:        t.Slug,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
