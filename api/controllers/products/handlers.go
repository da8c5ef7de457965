package products

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/menuboard-backend/api/controllers/requestctx"
	"github.com/angelmondragon/menuboard-backend/api/responses"
	"github.com/angelmondragon/menuboard-backend/api/validators"
	product "github.com/angelmondragon/menuboard-backend/internal/products"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
)

const (
	imageField        = "image"
	multipartMemBytes = 1 << 20
)

type productRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=120"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category" validate:"omitempty,max=60"`
}

func List(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := requestctx.TenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.List(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func Categories(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := requestctx.TenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categories, err := svc.Categories(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

func Get(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, productID, err := scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), tenantID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// Create accepts either JSON or multipart/form-data with an optional image part.
func Create(svc product.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := requestctx.TenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body, image, cleanup, err := readProductRequest(w, r, maxUploadBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer cleanup()

		input := product.CreateProductInput{
			Description: body.Description,
			Image:       image,
		}
		if body.Name != nil {
			input.Name = *body.Name
		}
		if body.Category != nil {
			input.Category = *body.Category
		}
		if body.Price == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price is required"))
			return
		}
		input.Price = *body.Price

		created, err := svc.Create(r.Context(), tenantID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// Update applies a partial edit; absent fields stay unchanged.
func Update(svc product.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, productID, err := scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body, image, cleanup, err := readProductRequest(w, r, maxUploadBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer cleanup()

		updated, err := svc.Update(r.Context(), tenantID, productID, product.UpdateProductInput{
			Name:        body.Name,
			Description: body.Description,
			Price:       body.Price,
			Category:    body.Category,
			Image:       image,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func Delete(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, productID, err := scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), tenantID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func scope(r *http.Request) (tenantID, productID uuid.UUID, err error) {
	tenantID, err = requestctx.TenantID(r)
	if err != nil {
		return
	}
	productID, err = requestctx.PathUUID(r, "productId", "product id")
	return
}

func readProductRequest(w http.ResponseWriter, r *http.Request, maxUploadBytes int64) (productRequest, *product.ImageUpload, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body productRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return productRequest{}, nil, noop, err
		}
		return body, nil, noop, nil
	}

	if maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartMemBytes)
	}
	if err := r.ParseMultipartForm(multipartMemBytes); err != nil {
		return productRequest{}, nil, noop, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	body := productRequest{
		Name:        formValue(r, "name"),
		Description: formValue(r, "description"),
		Category:    formValue(r, "category"),
	}
	if raw := formValue(r, "price"); raw != nil {
		price, err := decimal.NewFromString(*raw)
		if err != nil {
			cleanup()
			return productRequest{}, nil, noop, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price must be a number")
		}
		body.Price = &price
	}

	file, header, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) {
		return body, nil, cleanup, nil
	}
	if err != nil {
		cleanup()
		return productRequest{}, nil, noop, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid image part")
	}
	closeAll := func() {
		_ = file.Close()
		cleanup()
	}
	return body, &product.ImageUpload{Filename: header.Filename, Body: file}, closeAll, nil
}

func formValue(r *http.Request, key string) *string {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}
