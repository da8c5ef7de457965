package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/menuboard-backend/api/controllers"
	authcontrollers "github.com/angelmondragon/menuboard-backend/api/controllers/auth"
	ordercontrollers "github.com/angelmondragon/menuboard-backend/api/controllers/orders"
	productcontrollers "github.com/angelmondragon/menuboard-backend/api/controllers/products"
	"github.com/angelmondragon/menuboard-backend/api/controllers/storefront"
	"github.com/angelmondragon/menuboard-backend/api/middleware"
	"github.com/angelmondragon/menuboard-backend/internal/auth"
	"github.com/angelmondragon/menuboard-backend/internal/cart"
	"github.com/angelmondragon/menuboard-backend/internal/orders"
	product "github.com/angelmondragon/menuboard-backend/internal/products"
	"github.com/angelmondragon/menuboard-backend/internal/tenants"
	"github.com/angelmondragon/menuboard-backend/pkg/auth/session"
	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/redis"
)

const tracingService = "menuboard-api"

// rateStore backs both the login throttle and the replay cache.
type rateStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Gatherer prometheus.Gatherer
	Health   map[string]controllers.Pinger
	Store    rateStore
	Sessions session.AccessSessionChecker

	Auth     auth.Service
	Register auth.RegisterService
	Tenants  tenants.Service
	Products product.Service
	Carts    cart.Service
	Orders   orders.Service
	Feed     ordercontrollers.Feed
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Tracing(tracingService),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	limits := cfg.AuthRateLimit
	loginPolicy := middleware.RateLimitPolicy{
		Name:     "login",
		Window:   limits.LoginWindow,
		PerIP:    limits.LoginIPLimit,
		PerEmail: limits.LoginEmailLimit,
	}
	registerPolicy := middleware.RateLimitPolicy{
		Name:     "register",
		Window:   limits.RegisterWindow,
		PerIP:    limits.RegisterIPLimit,
		PerEmail: limits.RegisterEmailLimit,
	}
	maxUpload := int64(cfg.GCS.MaxUploadMB) << 20

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.Health, logg))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	replay := middleware.Idempotency(d.Store, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, d.Store, logg), replay).Post("/register", authcontrollers.AuthRegister(d.Register, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, d.Store, logg)).Post("/login", authcontrollers.AuthLogin(d.Auth, logg))
			r.Post("/refresh", authcontrollers.AuthRefresh(d.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).Post("/logout", authcontrollers.AuthLogout(d.Auth, logg))
		})

		r.Route("/r/{slug}", func(r chi.Router) {
			r.Get("/menu", storefront.Menu(d.Products, logg))
			r.Post("/carts", storefront.OpenCart(d.Tenants, d.Carts, logg))
			r.Route("/carts/{cartId}", func(r chi.Router) {
				r.Get("/", storefront.GetCart(d.Tenants, d.Carts, logg))
				r.Delete("/", storefront.ClearCart(d.Tenants, d.Carts, logg))
				r.Post("/items", storefront.AddCartItem(d.Tenants, d.Carts, logg))
				r.Delete("/items/{productId}", storefront.RemoveCartItem(d.Tenants, d.Carts, logg))
			})
			r.With(replay).Post("/orders", storefront.PlaceOrder(d.Tenants, d.Carts, d.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg), replay)

			r.Route("/tenant", func(r chi.Router) {
				r.Get("/", controllers.TenantProfile(d.Tenants, logg))
				r.Patch("/", controllers.TenantUpdateProfile(d.Tenants, logg))
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", productcontrollers.List(d.Products, logg))
				r.Post("/", productcontrollers.Create(d.Products, maxUpload, logg))
				r.Get("/categories", productcontrollers.Categories(d.Products, logg))
				r.Route("/{productId}", func(r chi.Router) {
					r.Get("/", productcontrollers.Get(d.Products, logg))
					r.Patch("/", productcontrollers.Update(d.Products, maxUpload, logg))
					r.Delete("/", productcontrollers.Delete(d.Products, logg))
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.Snapshot(d.Feed, logg))
				r.Get("/live", ordercontrollers.Live(d.Feed, cfg.Orders.LiveHeartbeat, logg))
				r.Get("/history", ordercontrollers.History(d.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
				r.Patch("/{orderId}/status", ordercontrollers.UpdateStatus(d.Feed, logg))
			})
		})
	})

	return r
}
