package orders

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/menuboard-backend/internal/cart"
	"github.com/angelmondragon/menuboard-backend/pkg/db/dbtest"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
)

type fakeGuard struct {
	mu         sync.Mutex
	held       map[string]string
	acquireErr error
	released   int
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: map[string]string{}}
}

func (g *fakeGuard) SubmitGuardKey(cartID string) string { return "menu:submit:" + cartID }

func (g *fakeGuard) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if g.acquireErr != nil {
		return false, g.acquireErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return false, nil
	}
	g.held[key] = token
	return true, nil
}

func (g *fakeGuard) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[key] != token {
		return false, nil
	}
	delete(g.held, key)
	g.released++
	return true, nil
}

type memoryListener struct {
	bus      *memoryBus
	tenantID uuid.UUID
	ch       chan string
	once     sync.Once
}

func (l *memoryListener) Messages() <-chan string { return l.ch }

func (l *memoryListener) Close() error {
	l.bus.drop(l)
	return nil
}

type memoryBus struct {
	mu        sync.Mutex
	listeners map[uuid.UUID]map[*memoryListener]struct{}
	notified  []uuid.UUID
	notifyErr error
}

func newMemoryBus() *memoryBus {
	return &memoryBus{listeners: map[uuid.UUID]map[*memoryListener]struct{}{}}
}

func (b *memoryBus) Notify(ctx context.Context, tenantID, orderID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notifyErr != nil {
		return b.notifyErr
	}
	b.notified = append(b.notified, orderID)
	for l := range b.listeners[tenantID] {
		select {
		case l.ch <- orderID.String():
		default:
		}
	}
	return nil
}

func (b *memoryBus) Listen(ctx context.Context, tenantID uuid.UUID) (Listener, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := &memoryListener{bus: b, tenantID: tenantID, ch: make(chan string, 16)}
	if b.listeners[tenantID] == nil {
		b.listeners[tenantID] = map[*memoryListener]struct{}{}
	}
	b.listeners[tenantID][l] = struct{}{}
	return l, nil
}

func (b *memoryBus) drop(l *memoryListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners[l.tenantID], l)
	l.once.Do(func() { close(l.ch) })
}

// hangUp ends every listener of tenantID as a dropped connection would.
func (b *memoryBus) hangUp(tenantID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for l := range b.listeners[tenantID] {
		delete(b.listeners[tenantID], l)
		l.once.Do(func() { close(l.ch) })
	}
}

func (b *memoryBus) listenerCount(tenantID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[tenantID])
}

func (b *memoryBus) notifyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.notified)
}

type failingEmitter struct{}

func (failingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

// steppingClock advances one second per reading so orders sort deterministically.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	svc      Service
	db       *gorm.DB
	tenant   *models.Tenant
	guard    *fakeGuard
	bus      *memoryBus
	registry *prometheus.Registry
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
}

type harnessOption func(*ServiceParams)

func withEmitter(e outbox.Emitter) harnessOption {
	return func(p *ServiceParams) { p.Outbox = e }
}

func withStrictTransitions() harnessOption {
	return func(p *ServiceParams) { p.StrictTransitions = true }
}

func newHarness(t *testing.T, opts ...harnessOption) harness {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	tenant := dbtest.Tenant(t, conn, "Cantina da Praça", "cantina")

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	m := metrics.NewOrderMetrics(reg)
	guard := newFakeGuard()
	bus := newMemoryBus()
	clock := &steppingClock{now: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)}

	params := ServiceParams{
		Repo:            NewRepository(conn),
		DB:              client,
		Outbox:          outbox.NewService(outbox.NewRepository(conn), logg),
		Guard:           guard,
		Bus:             bus,
		Metrics:         m,
		Logger:          logg,
		HistoryPageSize: 20,
		Clock:           clock.Now,
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return harness{
		svc:      svc,
		db:       conn,
		tenant:   tenant,
		guard:    guard,
		bus:      bus,
		registry: reg,
		metrics:  m,
		logg:     logg,
	}
}

func sampleCart() *cart.Cart {
	c := &cart.Cart{}
	c.Add(cart.Product{ID: uuid.New(), Name: "X-Burger", Price: decimal.RequireFromString("20.00")})
	c.Add(cart.Product{ID: uuid.New(), Name: "Refrigerante", Price: decimal.RequireFromString("5.50")})
	return c
}

func (h harness) pickupInput() PlaceOrderInput {
	return PlaceOrderInput{
		Tenant:         h.tenant,
		CartID:         uuid.New(),
		Cart:           sampleCart(),
		Customer:       Customer{Name: "Ana", Phone: "11999990000"},
		DeliveryMethod: "pickup",
		PaymentMethod:  "pix",
	}
}

func (h harness) place(t *testing.T) *OrderDTO {
	t.Helper()
	order, err := h.svc.PlaceOrder(context.Background(), h.pickupInput())
	require.NoError(t, err)
	return order
}

func (h harness) outboxCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func (h harness) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

// sharedCart is one stored cart that several submissions claim by id.
type sharedCart struct {
	mu            sync.Mutex
	cart          *cart.Cart
	guard         *fakeGuard
	key           string
	loadErr       error
	consumeErr    error
	consumed      int
	heldAtConsume bool
}

func (h harness) claimFor(input PlaceOrderInput, stored *cart.Cart) *sharedCart {
	return &sharedCart{cart: stored, guard: h.guard, key: h.guard.SubmitGuardKey(input.CartID.String())}
}

func (c *sharedCart) Load(context.Context) (*cart.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	return c.cart, nil
}

func (c *sharedCart) Consume(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guard.mu.Lock()
	_, c.heldAtConsume = c.guard.held[c.key]
	c.guard.mu.Unlock()
	if c.consumeErr != nil {
		return c.consumeErr
	}
	c.consumed++
	c.cart.Clear()
	return nil
}
