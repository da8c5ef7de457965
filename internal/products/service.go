package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/menuboard-backend/internal/tenants"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/storage/gcs"
)

const productNotFoundMessage = "product not found"

// Service exposes catalog management for owners and the public menu.
type Service interface {
	Create(ctx context.Context, tenantID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, tenantID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, tenantID, productID uuid.UUID) error
	Get(ctx context.Context, tenantID, productID uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]ProductDTO, error)
	Categories(ctx context.Context, tenantID uuid.UUID) ([]string, error)
	Menu(ctx context.Context, slug string) (*MenuDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	Category    string
	Image       *ImageUpload
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Image       *ImageUpload
}

type productRepository interface {
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) (*models.Product, error)
	Delete(ctx context.Context, tenantID, productID uuid.UUID) (bool, error)
	FindByID(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error)
	Categories(ctx context.Context, tenantID uuid.UUID) ([]string, error)
}

type blobStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (*gcs.UploadedObject, error)
	DeleteObject(ctx context.Context, object string) error
}

type tenantResolver interface {
	ResolveSlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// ServiceParams bundles product service dependencies.
type ServiceParams struct {
	Repo          productRepository
	Blobs         blobStore
	Tenants       tenantResolver
	Logger        *logger.Logger
	MaxImageBytes int64
	Clock         func() time.Time
}

type service struct {
	repo     productRepository
	blobs    blobStore
	tenants  tenantResolver
	logg     *logger.Logger
	maxImage int64
	now      func() time.Time
}

// NewService constructs a product service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant resolver required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repo,
		blobs:    params.Blobs,
		tenants:  params.Tenants,
		logg:     params.Logger,
		maxImage: params.MaxImageBytes,
		now:      clock,
	}, nil
}

func (s *service) Create(ctx context.Context, tenantID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	category := strings.TrimSpace(input.Category)
	if err := validateFields(name, category, input.Price); err != nil {
		return nil, err
	}

	product := &models.Product{
		TenantID:    tenantID,
		Name:        name,
		Description: trimOptional(input.Description),
		Price:       input.Price.Round(2),
		Category:    category,
	}

	uploaded, err := s.upload(ctx, tenantID, input.Image)
	if err != nil {
		return nil, err
	}
	if uploaded != nil {
		product.ImageURL = &uploaded.URL
		product.ImageObject = &uploaded.Name
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		if uploaded != nil {
			s.dropBlob(ctx, uploaded.Name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}
	return NewProductDTO(created), nil
}

func (s *service) Update(ctx context.Context, tenantID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.load(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = trimOptional(input.Description)
	}
	if input.Price != nil {
		product.Price = input.Price.Round(2)
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	if err := validateFields(product.Name, product.Category, product.Price); err != nil {
		return nil, err
	}

	var previousObject *string
	uploaded, err := s.upload(ctx, tenantID, input.Image)
	if err != nil {
		return nil, err
	}
	if uploaded != nil {
		previousObject = product.ImageObject
		product.ImageURL = &uploaded.URL
		product.ImageObject = &uploaded.Name
	}

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		if uploaded != nil {
			s.dropBlob(ctx, uploaded.Name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	if previousObject != nil {
		s.dropBlob(ctx, *previousObject)
	}
	return NewProductDTO(updated), nil
}

// Delete removes the product. Orders keep their own snapshot of it, so
// nothing else is touched besides a best-effort blob removal.
func (s *service) Delete(ctx context.Context, tenantID, productID uuid.UUID) error {
	product, err := s.load(ctx, tenantID, productID)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, tenantID, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, productNotFoundMessage)
	}
	if product.ImageObject != nil {
		s.dropBlob(ctx, *product.ImageObject)
	}
	return nil
}

func (s *service) Get(ctx context.Context, tenantID, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID) ([]ProductDTO, error) {
	rows, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return newProductDTOs(rows), nil
}

func (s *service) Categories(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	categories, err := s.repo.Categories(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

func (s *service) Menu(ctx context.Context, slug string) (*MenuDTO, error) {
	tenant, err := s.tenants.ResolveSlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	products, err := s.List(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	categories, err := s.Categories(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	return &MenuDTO{
		TenantID:    tenant.ID,
		DisplayName: tenants.DisplayName(tenant),
		Slug:        tenant.Slug,
		Categories:  categories,
		Products:    products,
	}, nil
}

func (s *service) load(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, productNotFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) upload(ctx context.Context, tenantID uuid.UUID, image *ImageUpload) (*gcs.UploadedObject, error) {
	prepared, err := prepareImage(tenantID, s.now().UTC(), image, s.maxImage)
	if err != nil || prepared == nil {
		return nil, err
	}
	uploaded, err := s.blobs.Upload(ctx, prepared.object, prepared.contentType, prepared.reader())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload image")
	}
	return uploaded, nil
}

func (s *service) dropBlob(ctx context.Context, object string) {
	if err := s.blobs.DeleteObject(ctx, object); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "object", object), "product image cleanup failed: "+err.Error())
	}
}

func validateFields(name, category string, price decimal.Decimal) error {
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if category == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
	}
	return nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
