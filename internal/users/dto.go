package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
)

// UserDTO is the account as returned to clients. The password hash never
// leaves the service.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	TenantID    *uuid.UUID `json:"tenant_id,omitempty"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateUserDTO is an account about to be stored. Email must already be
// normalised and PasswordHash already derived.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	dto := UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		TenantID:    u.TenantID,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	return &dto
}

// ToModel builds an active account with no restaurant linked yet.
func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{Email: c.Email, PasswordHash: c.PasswordHash, IsActive: true}
}
