package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
)

// ErrFeedClosed is delivered when the change stream of a tenant ends.
var ErrFeedClosed = errors.New("live order feed closed")

type snapshotReader interface {
	Snapshot(ctx context.Context, tenantID uuid.UUID) (*Snapshot, error)
}

type statusSetter interface {
	SetStatus(ctx context.Context, input SetStatusInput) (*OrderDTO, error)
}

// Update is one delivery on a live subscription: a full replacement
// snapshot, or the error that ended the feed.
type Update struct {
	Snapshot *Snapshot
	Err      error
}

// LiveFeed keeps one cached snapshot per watched tenant. A single goroutine
// per tenant owns the change subscription and the cache; subscribers only
// receive copies of the newest snapshot.
type LiveFeed struct {
	orders  snapshotReader
	status  statusSetter
	bus     Bus
	logg    *logger.Logger
	metrics *metrics.OrderMetrics

	mu   sync.Mutex
	hubs map[uuid.UUID]*tenantHub
}

// NewLiveFeed builds the per-tenant live order hub registry.
func NewLiveFeed(svc Service, bus Bus, logg *logger.Logger, m *metrics.OrderMetrics) (*LiveFeed, error) {
	if svc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if bus == nil {
		return nil, fmt.Errorf("change bus required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LiveFeed{
		orders:  svc,
		status:  svc,
		bus:     bus,
		logg:    logg,
		metrics: m,
		hubs:    map[uuid.UUID]*tenantHub{},
	}, nil
}

// Snapshot reads the tenant's orders directly, bypassing the cache.
func (f *LiveFeed) Snapshot(ctx context.Context, tenantID uuid.UUID) (*Snapshot, error) {
	return f.orders.Snapshot(ctx, tenantID)
}

// ChangeStatus applies a lifecycle transition; the resulting change signal
// refreshes every subscriber.
func (f *LiveFeed) ChangeStatus(ctx context.Context, tenantID, orderID uuid.UUID, status enums.OrderStatus, actor uuid.UUID) (*OrderDTO, error) {
	return f.status.SetStatus(ctx, SetStatusInput{
		TenantID:    tenantID,
		OrderID:     orderID,
		Status:      status,
		ActorUserID: actor,
	})
}

// Subscribe registers a viewer for tenantID. The channel first carries the
// current snapshot, then a fresh one after every change. A slow reader only
// ever sees the newest pending snapshot. The returned func unsubscribes; the
// subscription also ends when ctx is done.
func (f *LiveFeed) Subscribe(ctx context.Context, tenantID uuid.UUID) (<-chan Update, func()) {
	sub := &subscriber{ch: make(chan Update, 1), done: make(chan struct{})}

	f.mu.Lock()
	hub, ok := f.hubs[tenantID]
	if !ok {
		hub = newTenantHub(f, tenantID)
		f.hubs[tenantID] = hub
		go hub.run()
	}
	hub.add(sub)
	f.mu.Unlock()
	f.metrics.AddSubscribers(1)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.leave(hub, sub)
			f.metrics.AddSubscribers(-1)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-sub.done:
		}
		cancel()
	}()
	return sub.ch, cancel
}

// leave drops sub and stops the hub once nobody is watching.
func (f *LiveFeed) leave(hub *tenantHub, sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hub.remove(sub) == 0 {
		if f.hubs[hub.tenantID] == hub {
			delete(f.hubs, hub.tenantID)
		}
		hub.stop()
	}
}

// forget unregisters a hub that ended on its own.
func (f *LiveFeed) forget(hub *tenantHub) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hubs[hub.tenantID] == hub {
		delete(f.hubs, hub.tenantID)
	}
}

func (f *LiveFeed) activeHubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hubs)
}

type subscriber struct {
	ch       chan Update
	done     chan struct{}
	doneOnce sync.Once
}

// offer replaces any pending update with u. Only the hub goroutine sends.
func (s *subscriber) offer(u Update) {
	for {
		select {
		case s.ch <- u:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscriber) finish() {
	s.doneOnce.Do(func() {
		close(s.done)
		close(s.ch)
	})
}

type tenantHub struct {
	feed     *LiveFeed
	tenantID uuid.UUID
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	latest  *Snapshot
	seq     uint64
	stopped bool
}

func newTenantHub(feed *LiveFeed, tenantID uuid.UUID) *tenantHub {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = feed.logg.WithTenantID(ctx, tenantID.String())
	return &tenantHub{
		feed:     feed,
		tenantID: tenantID,
		ctx:      ctx,
		cancel:   cancel,
		subs:     map[*subscriber]struct{}{},
	}
}

func (h *tenantHub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		sub.offer(Update{Err: ErrFeedClosed})
		sub.finish()
		return
	}
	h.subs[sub] = struct{}{}
	if h.latest != nil {
		sub.offer(Update{Snapshot: h.latest})
	}
}

func (h *tenantHub) remove(sub *subscriber) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		sub.finish()
	}
	return len(h.subs)
}

func (h *tenantHub) stop() {
	h.cancel()
}

func (h *tenantHub) run() {
	defer h.cancel()

	listener, err := h.feed.bus.Listen(h.ctx, h.tenantID)
	if err != nil {
		h.fail(fmt.Errorf("listen for order changes: %w", err))
		return
	}
	defer func() { _ = listener.Close() }()

	if !h.refresh() {
		return
	}
	messages := listener.Messages()
	for {
		select {
		case <-h.ctx.Done():
			return
		case _, ok := <-messages:
			if !ok {
				h.fail(ErrFeedClosed)
				return
			}
			drain(messages)
			if !h.refresh() {
				return
			}
		}
	}
}

// refresh re-reads the order list and broadcasts it. A read failure ends the feed.
func (h *tenantHub) refresh() bool {
	snap, err := h.feed.orders.Snapshot(h.ctx, h.tenantID)
	if err != nil {
		if h.ctx.Err() != nil {
			return false
		}
		h.fail(err)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.seq++
	snap.Seq = h.seq
	h.latest = snap
	for sub := range h.subs {
		sub.offer(Update{Snapshot: snap})
	}
	return true
}

// fail delivers err to every subscriber and closes their channels.
func (h *tenantHub) fail(err error) {
	h.feed.logg.Error(h.ctx, "orders.live_feed_failed", err)
	h.feed.forget(h)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for sub := range h.subs {
		sub.offer(Update{Err: err})
		sub.finish()
	}
	h.subs = map[*subscriber]struct{}{}
}

// drain discards notifications already queued; one re-read covers them all.
func drain(messages <-chan string) {
	for {
		select {
		case _, ok := <-messages:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
