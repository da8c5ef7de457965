// Package storefront serves the public, unauthenticated side of a restaurant:
// its menu, the customer's cart and order submission.
package storefront

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/menuboard-backend/api/controllers/requestctx"
	"github.com/angelmondragon/menuboard-backend/api/responses"
	"github.com/angelmondragon/menuboard-backend/api/validators"
	"github.com/angelmondragon/menuboard-backend/internal/cart"
	"github.com/angelmondragon/menuboard-backend/internal/orders"
	product "github.com/angelmondragon/menuboard-backend/internal/products"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
)

type tenantResolver interface {
	ResolveSlug(ctx context.Context, slug string) (*models.Tenant, error)
}

type menuReader interface {
	Menu(ctx context.Context, slug string) (*product.MenuDTO, error)
}

type orderPlacer interface {
	PlaceOrder(ctx context.Context, input orders.PlaceOrderInput) (*orders.OrderDTO, error)
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type placeOrderRequest struct {
	CartID         uuid.UUID       `json:"cart_id" validate:"required"`
	Customer       orders.Customer `json:"customer"`
	DeliveryMethod string          `json:"delivery_method"`
	PaymentMethod  string          `json:"payment_method"`
	Notes          string          `json:"notes" validate:"max=500"`
}

func (r *placeOrderRequest) Normalize() {
	r.Customer.Name = validators.CleanText(r.Customer.Name, 120)
	r.Customer.Phone = validators.CleanText(r.Customer.Phone, 40)
	r.Customer.Address = validators.CleanText(r.Customer.Address, 300)
	r.Notes = validators.CleanText(r.Notes, 500)
}

// Menu returns the public menu of the restaurant at /r/{slug}.
func Menu(menus menuReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		menu, err := menus.Menu(r.Context(), slug(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, menu)
	}
}

// OpenCart starts an empty cart bound to the restaurant.
func OpenCart(tenants tenantResolver, carts cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := tenants.ResolveSlug(r.Context(), slug(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := carts.Open(r.Context(), tenant.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("X-Cart-Id", session.ID.String())
		responses.WriteSuccessStatus(w, http.StatusCreated, session.View())
	}
}

func GetCart(tenants tenantResolver, carts cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, cartID, err := cartScope(r, tenants)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := carts.Get(r.Context(), tenant.ID, cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session.View())
	}
}

// AddCartItem adds one unit of a menu product to the cart.
func AddCartItem(tenants tenantResolver, carts cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, cartID, err := cartScope(r, tenants)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := carts.AddItem(r.Context(), tenant.ID, cartID, body.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session.View())
	}
}

// RemoveCartItem takes one unit of a product out of the cart.
func RemoveCartItem(tenants tenantResolver, carts cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, cartID, err := cartScope(r, tenants)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := requestctx.PathUUID(r, "productId", "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := carts.RemoveItem(r.Context(), tenant.ID, cartID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session.View())
	}
}

func ClearCart(tenants tenantResolver, carts cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, cartID, err := cartScope(r, tenants)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := carts.Clear(r.Context(), tenant.ID, cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session.View())
	}
}

// PlaceOrder submits the cart as an order. The cart is emptied only once the
// order is stored; on any failure it stays intact for a retry.
func PlaceOrder(tenants tenantResolver, carts cart.Service, placer orderPlacer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := tenants.ResolveSlug(r.Context(), slug(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body placeOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := carts.Get(r.Context(), tenant.ID, body.CartID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				err = pkgerrors.Wrap(pkgerrors.CodeEmptyCart, err, "cart is empty")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := placer.PlaceOrder(r.Context(), orders.PlaceOrderInput{
			Tenant:         tenant,
			CartID:         session.ID,
			Cart:           &session.Cart,
			Claim:          storedCart{carts: carts, tenantID: tenant.ID, cartID: session.ID},
			Customer:       body.Customer,
			DeliveryMethod: body.DeliveryMethod,
			PaymentMethod:  body.PaymentMethod,
			Notes:          body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// storedCart lets order submission reread and empty the cart under its guard.
type storedCart struct {
	carts    cart.Service
	tenantID uuid.UUID
	cartID   uuid.UUID
}

func (c storedCart) Load(ctx context.Context) (*cart.Cart, error) {
	session, err := c.carts.Get(ctx, c.tenantID, c.cartID)
	if err != nil {
		return nil, err
	}
	return &session.Cart, nil
}

func (c storedCart) Consume(ctx context.Context) error {
	_, err := c.carts.Clear(ctx, c.tenantID, c.cartID)
	return err
}

func slug(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "slug"))
}

func cartScope(r *http.Request, tenants tenantResolver) (*models.Tenant, uuid.UUID, error) {
	tenant, err := tenants.ResolveSlug(r.Context(), slug(r))
	if err != nil {
		return nil, uuid.Nil, err
	}
	cartID, err := requestctx.PathUUID(r, "cartId", "cart id")
	if err != nil {
		return nil, uuid.Nil, err
	}
	return tenant, cartID, nil
}
