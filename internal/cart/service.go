package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	product "github.com/angelmondragon/menuboard-backend/internal/products"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	redisclient "github.com/angelmondragon/menuboard-backend/pkg/redis"
)

const (
	defaultTTL      = 12 * time.Hour
	cartNotFoundMsg = "cart not found"
)

type cartStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CartKey(cartID string) string
}

type catalog interface {
	Get(ctx context.Context, tenantID, productID uuid.UUID) (*product.ProductDTO, error)
}

// Session is a cart bound to one tenant and addressed by an opaque id.
type Session struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Cart      Cart      `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View is the read model returned to the storefront.
type View struct {
	ID        uuid.UUID       `json:"id"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Lines     []Line          `json:"lines"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// View renders the session with its freshly computed total.
func (s *Session) View() *View {
	return &View{
		ID:        s.ID,
		TenantID:  s.TenantID,
		Lines:     s.Cart.Lines(),
		ItemCount: s.Cart.ItemCount(),
		Total:     s.Cart.Total(),
		UpdatedAt: s.UpdatedAt,
	}
}

// Service hosts customer carts in Redis with a sliding TTL.
type Service interface {
	Open(ctx context.Context, tenantID uuid.UUID) (*Session, error)
	Get(ctx context.Context, tenantID, cartID uuid.UUID) (*Session, error)
	AddItem(ctx context.Context, tenantID, cartID, productID uuid.UUID) (*Session, error)
	RemoveItem(ctx context.Context, tenantID, cartID, productID uuid.UUID) (*Session, error)
	Clear(ctx context.Context, tenantID, cartID uuid.UUID) (*Session, error)
}

type service struct {
	store   cartStore
	catalog catalog
	ttl     time.Duration
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(store cartStore, catalog catalog, ttl time.Duration) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &service{store: store, catalog: catalog, ttl: ttl, now: time.Now}, nil
}

func (s *service) Open(ctx context.Context, tenantID uuid.UUID) (*Session, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant is required")
	}
	session := &Session{ID: uuid.New(), TenantID: tenantID}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) Get(ctx context.Context, tenantID, cartID uuid.UUID) (*Session, error) {
	raw, err := s.store.Get(ctx, s.store.CartKey(cartID.String()))
	if err != nil {
		if redisclient.IsNil(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, cartNotFoundMsg)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	// a cart id from another restaurant is indistinguishable from a missing one
	if session.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, cartNotFoundMsg)
	}
	return &session, nil
}

func (s *service) AddItem(ctx context.Context, tenantID, cartID, productID uuid.UUID) (*Session, error) {
	session, err := s.Get(ctx, tenantID, cartID)
	if err != nil {
		return nil, err
	}
	item, err := s.catalog.Get(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	session.Cart.Add(Product{ID: item.ID, Name: strings.TrimSpace(item.Name), Price: item.Price})
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) RemoveItem(ctx context.Context, tenantID, cartID, productID uuid.UUID) (*Session, error) {
	session, err := s.Get(ctx, tenantID, cartID)
	if err != nil {
		return nil, err
	}
	session.Cart.Remove(productID)
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) Clear(ctx context.Context, tenantID, cartID uuid.UUID) (*Session, error) {
	session, err := s.Get(ctx, tenantID, cartID)
	if err != nil {
		return nil, err
	}
	session.Cart.Clear()
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) save(ctx context.Context, session *Session) error {
	session.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.store.Set(ctx, s.store.CartKey(session.ID.String()), string(raw), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store cart")
	}
	return nil
}
