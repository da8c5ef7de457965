package tenants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/menuboard-backend/pkg/db"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
)

const slugConstraint = "idx_tenants_slug"

type tenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	SlugTaken(ctx context.Context, slug string, except uuid.UUID) (bool, error)
	Update(ctx context.Context, tenant *models.Tenant) error
}

// Service exposes tenant lookups and profile management.
type Service interface {
	ResolveSlug(ctx context.Context, slug string) (*models.Tenant, error)
	Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
	Profile(ctx context.Context, tenantID uuid.UUID) (*TenantDTO, error)
	UpdateProfile(ctx context.Context, tenantID uuid.UUID, input UpdateProfileInput) (*TenantDTO, error)
}

// UpdateProfileInput captures the mutable profile fields. Nil leaves a field unchanged.
type UpdateProfileInput struct {
	Name *string
	Slug *string
}

type service struct {
	repo tenantRepository
}

// NewService builds a tenant service.
func NewService(repo tenantRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ResolveSlug(ctx context.Context, slug string) (*models.Tenant, error) {
	normalized := NormalizeSlug(slug)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
	}
	tenant, err := s.repo.FindBySlug(ctx, normalized)
	if err != nil {
		return nil, notFoundOr(err, "restaurant not found", "resolve slug")
	}
	return tenant, nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "restaurant not found", "load tenant")
	}
	return tenant, nil
}

func (s *service) Profile(ctx context.Context, tenantID uuid.UUID) (*TenantDTO, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return FromModel(tenant), nil
}

func (s *service) UpdateProfile(ctx context.Context, tenantID uuid.UUID, input UpdateProfileInput) (*TenantDTO, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		tenant.Name = strings.TrimSpace(*input.Name)
	}
	if input.Slug != nil {
		slug := NormalizeSlug(*input.Slug)
		if !ValidSlug(slug) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be 3-63 characters of a-z, 0-9 or '-'")
		}
		if slug != tenant.Slug {
			taken, err := s.repo.SlugTaken(ctx, slug, tenant.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
			}
			if taken {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
			}
			tenant.Slug = slug
		}
	}

	if err := s.repo.Update(ctx, tenant); err != nil {
		if db.IsUniqueViolation(err, slugConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tenant")
	}
	return FromModel(tenant), nil
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
