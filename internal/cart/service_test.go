package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	product "github.com/angelmondragon/menuboard-backend/internal/products"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) CartKey(cartID string) string {
	return "menu:cart:" + cartID
}

type stubCatalog struct {
	products map[uuid.UUID]*product.ProductDTO
}

func (s stubCatalog) Get(ctx context.Context, tenantID, productID uuid.UUID) (*product.ProductDTO, error) {
	p, ok := s.products[productID]
	if !ok || p.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	suco := &product.ProductDTO{ID: uuid.New(), TenantID: tenantID, Name: "Suco", Price: decimal.RequireFromString("10.00")}
	pao := &product.ProductDTO{ID: uuid.New(), TenantID: tenantID, Name: "Pão", Price: decimal.RequireFromString("5.50")}
	store := newMemoryStore()

	svc, err := NewService(store, stubCatalog{products: map[uuid.UUID]*product.ProductDTO{suco.ID: suco, pao.ID: pao}}, time.Hour)
	require.NoError(t, err)

	session, err := svc.Open(ctx, tenantID)
	require.NoError(t, err)
	require.Equal(t, time.Hour, store.ttls["menu:cart:"+session.ID.String()])

	_, err = svc.AddItem(ctx, tenantID, session.ID, suco.ID)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, tenantID, session.ID, suco.ID)
	require.NoError(t, err)
	session, err = svc.AddItem(ctx, tenantID, session.ID, pao.ID)
	require.NoError(t, err)

	view := session.View()
	require.True(t, view.Total.Equal(decimal.RequireFromString("25.50")), view.Total.String())
	require.Equal(t, 3, view.ItemCount)

	// later price edits do not reach lines already in the cart
	suco.Price = decimal.RequireFromString("99")
	session, err = svc.Get(ctx, tenantID, session.ID)
	require.NoError(t, err)
	require.True(t, session.Cart.Total().Equal(decimal.RequireFromString("25.50")))

	session, err = svc.RemoveItem(ctx, tenantID, session.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, 3, session.Cart.ItemCount())

	session, err = svc.Clear(ctx, tenantID, session.ID)
	require.NoError(t, err)
	require.True(t, session.Cart.IsEmpty())

	session, err = svc.Get(ctx, tenantID, session.ID)
	require.NoError(t, err, "a cleared cart stays open")
	require.Equal(t, 0, session.Cart.ItemCount())
}

func TestServiceScopesCartsToTenant(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	svc, err := NewService(newMemoryStore(), stubCatalog{}, 0)
	require.NoError(t, err)

	session, err := svc.Open(ctx, tenantID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, uuid.New(), session.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.AddItem(ctx, tenantID, session.ID, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
