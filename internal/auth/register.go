package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/menuboard-backend/internal/tenants"
	"github.com/angelmondragon/menuboard-backend/internal/users"
	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/security"
)

const (
	emailInUseMessage   = "email already in use"
	weakPasswordMessage = "password must have at least %d characters"
	slugTakenMessage    = "slug already in use"
	emailConstraint     = "idx_users_email"
	slugConstraint      = "idx_tenants_slug"
	slugSuffixLen       = 6
)

// RegisterService handles the sign up transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             txRunner
	SessionManager sessionManager
	PasswordConfig config.PasswordConfig
	JWTConfig      config.JWTConfig
}

type registerService struct {
	db          txRunner
	session     sessionManager
	passwordCfg config.PasswordConfig
	jwtCfg      config.JWTConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.SessionManager == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager required")
	}
	return &registerService{
		db:          params.DB,
		session:     params.SessionManager,
		passwordCfg: params.PasswordConfig,
		jwtCfg:      params.JWTConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	name := strings.TrimSpace(req.RestaurantName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant_name is required")
	}
	if err := security.CheckStrength(req.Password, s.passwordCfg); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeWeakPassword, fmt.Sprintf(weakPasswordMessage, security.MinLength(s.passwordCfg)))
	}

	explicitSlug := strings.TrimSpace(req.Slug) != ""
	slug := tenants.NormalizeSlug(req.Slug)
	if !explicitSlug {
		slug = tenants.SlugFromName(name)
	}
	if explicitSlug && !tenants.ValidSlug(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be 3-63 characters of a-z, 0-9 or '-'")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var (
		userID, tenantID uuid.UUID
		result           LoginResponse
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		tenantRepo := tenants.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeEmailInUse, emailInUseMessage)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
		}

		finalSlug, err := s.pickSlug(ctx, tenantRepo, slug, explicitSlug)
		if err != nil {
			return err
		}

		created, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
		})
		if err != nil {
			if db.IsUniqueViolation(err, emailConstraint) {
				return pkgerrors.New(pkgerrors.CodeEmailInUse, emailInUseMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}

		tenant, err := tenantRepo.Create(ctx, tenants.CreateTenantDTO{
			OwnerUserID: created.ID,
			Name:        name,
			Slug:        finalSlug,
		})
		if err != nil {
			if db.IsUniqueViolation(err, slugConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, slugTakenMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tenant")
		}

		if err := userRepo.SetTenant(ctx, created.ID, tenant.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "associate tenant with user")
		}
		created.TenantID = &tenant.ID

		userID, tenantID = created.ID, tenant.ID
		result.User = users.FromModel(created)
		result.Tenant = tenants.FromModel(tenant)
		return nil
	})
	if err != nil {
		return nil, err
	}

	tokens, err := issueTokens(ctx, s.session, s.jwtCfg, time.Now().UTC(), userID, tenantID)
	if err != nil {
		return nil, err
	}
	result.TokenPair = tokens
	return &result, nil
}

type slugChecker interface {
	SlugTaken(ctx context.Context, slug string, except uuid.UUID) (bool, error)
}

// pickSlug keeps an explicit slug or fails on conflict. A derived slug that is
// invalid or taken gets a short random suffix instead.
func (s *registerService) pickSlug(ctx context.Context, repo slugChecker, slug string, explicit bool) (string, error) {
	candidate := slug
	if !explicit && !tenants.ValidSlug(candidate) {
		candidate = strings.Trim("restaurante-"+candidate, "-")
	}
	taken, err := repo.SlugTaken(ctx, candidate, uuid.Nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
	}
	if !taken {
		return candidate, nil
	}
	if explicit {
		return "", pkgerrors.New(pkgerrors.CodeConflict, slugTakenMessage)
	}
	suffixed := candidate
	if len(suffixed) > 63-slugSuffixLen-1 {
		suffixed = strings.TrimRight(suffixed[:63-slugSuffixLen-1], "-")
	}
	return suffixed + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:slugSuffixLen], nil
}
