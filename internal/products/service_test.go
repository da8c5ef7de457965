package product

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/menuboard-backend/internal/tenants"
	"github.com/angelmondragon/menuboard-backend/pkg/db/dbtest"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/storage/gcs"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeBlobs struct {
	mu        sync.Mutex
	uploaded  map[string]string
	deleted   []string
	uploadErr error
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{uploaded: map[string]string{}}
}

func (f *fakeBlobs) Upload(ctx context.Context, object, contentType string, body io.Reader) (*gcs.UploadedObject, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[object] = contentType
	return &gcs.UploadedObject{Bucket: "bucket", Name: object, URL: "https://cdn.test/" + object}, nil
}

func (f *fakeBlobs) DeleteObject(ctx context.Context, object string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, object)
	return f.deleteErr
}

type harness struct {
	svc    Service
	blobs  *fakeBlobs
	db     *gorm.DB
	tenant *models.Tenant
}

func newHarness(t *testing.T) harness {
	t.Helper()
	conn := dbtest.Open(t)
	tenant := dbtest.Tenant(t, conn, "", "casa-do-pao")
	tenantSvc, err := tenants.NewService(tenants.NewRepository(conn))
	require.NoError(t, err)

	blobs := newFakeBlobs()
	fixed := time.UnixMilli(1700000000123)
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Blobs:   blobs,
		Tenants: tenantSvc,
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Clock:   func() time.Time { return fixed },
	})
	require.NoError(t, err)
	return harness{svc: svc, blobs: blobs, db: conn, tenant: tenant}
}

func TestCreateProductValidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []CreateProductInput{
		{Name: " ", Price: decimal.NewFromInt(1), Category: "Bebidas"},
		{Name: "Suco", Price: decimal.NewFromInt(1), Category: ""},
		{Name: "Suco", Price: decimal.NewFromInt(-1), Category: "Bebidas"},
	}
	for _, input := range cases {
		_, err := h.svc.Create(ctx, h.tenant.ID, input)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %+v: %v", input, err)
	}
}

func TestCreateProductUploadsImage(t *testing.T) {
	h := newHarness(t)

	dto, err := h.svc.Create(context.Background(), h.tenant.ID, CreateProductInput{
		Name:     "Pão de queijo",
		Price:    decimal.RequireFromString("7.50"),
		Category: "Salgados",
		Image:    &ImageUpload{Filename: "../fotos/pão queijo.png", Body: bytes.NewReader(pngHeader)},
	})
	require.NoError(t, err)

	object := h.tenant.ID.String() + "/images/1700000000123_p_o_queijo.png"
	require.NotNil(t, dto.ImageURL)
	assert.Equal(t, "https://cdn.test/"+object, *dto.ImageURL)
	assert.Equal(t, "image/png", h.blobs.uploaded[object])
	assert.True(t, dto.Price.Equal(decimal.RequireFromString("7.5")))
}

func TestCreateProductRejectsNonImage(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), h.tenant.ID, CreateProductInput{
		Name:     "Suco",
		Price:    decimal.NewFromInt(5),
		Category: "Bebidas",
		Image:    &ImageUpload{Filename: "notes.txt", Body: bytes.NewReader([]byte("plain text"))},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, h.blobs.uploaded)
}

func TestUpdateReplacesImageAndDropsOldBlob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, h.tenant.ID, CreateProductInput{
		Name: "Suco", Price: decimal.NewFromInt(5), Category: "Bebidas",
		Image: &ImageUpload{Filename: "a.png", Body: bytes.NewReader(pngHeader)},
	})
	require.NoError(t, err)

	price := decimal.RequireFromString("6.25")
	updated, err := h.svc.Update(ctx, h.tenant.ID, created.ID, UpdateProductInput{
		Price: &price,
		Image: &ImageUpload{Filename: "b.png", Body: bytes.NewReader(pngHeader)},
	})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.Contains(t, *updated.ImageURL, "_b.png")
	require.Len(t, h.blobs.deleted, 1)
	assert.Contains(t, h.blobs.deleted[0], "_a.png")
}

func TestDeleteIsTenantScopedAndBestEffortOnBlob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	other := dbtest.Tenant(t, h.db, "Outro", "outro")

	created, err := h.svc.Create(ctx, h.tenant.ID, CreateProductInput{
		Name: "Suco", Price: decimal.NewFromInt(5), Category: "Bebidas",
		Image: &ImageUpload{Filename: "a.png", Body: bytes.NewReader(pngHeader)},
	})
	require.NoError(t, err)

	err = h.svc.Delete(ctx, other.ID, created.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	h.blobs.deleteErr = errors.New("gcs down")
	require.NoError(t, h.svc.Delete(ctx, h.tenant.ID, created.ID))
	require.Len(t, h.blobs.deleted, 1)

	_, err = h.svc.Get(ctx, h.tenant.ID, created.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMenuGroupsByCategoryAndFallsBackDisplayName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, in := range []CreateProductInput{
		{Name: "Suco", Price: decimal.NewFromInt(5), Category: "Bebidas"},
		{Name: "Coxinha", Price: decimal.NewFromInt(6), Category: "Salgados"},
		{Name: "Água", Price: decimal.NewFromInt(3), Category: "Bebidas"},
	} {
		_, err := h.svc.Create(ctx, h.tenant.ID, in)
		require.NoError(t, err)
	}

	menu, err := h.svc.Menu(ctx, "casa-do-pao")
	require.NoError(t, err)
	assert.Equal(t, "Restaurante casa-do-pao", menu.DisplayName)
	assert.Equal(t, []string{"Bebidas", "Salgados"}, menu.Categories)
	require.Len(t, menu.Products, 3)
	assert.Equal(t, "Bebidas", menu.Products[0].Category)
	assert.Equal(t, "Salgados", menu.Products[2].Category)

	_, err = h.svc.Menu(ctx, "missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "photo.jpg", SanitizeFilename("photo.jpg"))
	assert.Equal(t, "my_photo_1_.png", SanitizeFilename(`C:\Users\me\my photo (1).png`))
	assert.Equal(t, "image", SanitizeFilename(" ../ "))
	assert.Equal(t, "x.png", SanitizeFilename("..x.png"))

	id := uuid.MustParse("7b0c1d5e-2b9f-4a54-8f0e-0f6f1c2a3b4d")
	assert.Equal(t, "7b0c1d5e-2b9f-4a54-8f0e-0f6f1c2a3b4d/images/1000_a.png", ImageObjectName(id, time.UnixMilli(1000), "a.png"))
}
