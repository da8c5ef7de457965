package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
	"github.com/angelmondragon/menuboard-backend/pkg/pagination"
	"github.com/angelmondragon/menuboard-backend/pkg/tracing"
)

const (
	orderNotFoundMessage = "order not found"
	defaultGuardTTL      = 30 * time.Second
)

var tracer = tracing.Tracer("github.com/angelmondragon/menuboard-backend/internal/orders")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// submitGuard is the single-slot in-flight lock taken per cart.
type submitGuard interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	SubmitGuardKey(cartID string) string
}

// Service places orders and moves them through their lifecycle.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error)
	SetStatus(ctx context.Context, input SetStatusInput) (*OrderDTO, error)
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderDTO, error)
	Snapshot(ctx context.Context, tenantID uuid.UUID) (*Snapshot, error)
	History(ctx context.Context, tenantID uuid.UUID, input HistoryInput) (*pagination.Page[OrderDTO], error)
}

// ServiceParams bundles the order service dependencies.
type ServiceParams struct {
	Repo    *Repository
	DB      txRunner
	Outbox  outbox.Emitter
	Guard   submitGuard
	Bus     Bus
	Metrics *metrics.OrderMetrics
	Logger  *logger.Logger
	// StrictTransitions restricts status changes to the forward lifecycle.
	// The zero value allows any-to-any moves.
	StrictTransitions bool
	GuardTTL          time.Duration
	HistoryPageSize   int
	Clock             func() time.Time
}

type service struct {
	repo     *Repository
	db       txRunner
	outbox   outbox.Emitter
	guard    submitGuard
	bus      Bus
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
	open     bool
	guardTTL time.Duration
	pageSize int
	now      func() time.Time
}

// NewService wires the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("submit guard required")
	}
	if params.Bus == nil {
		return nil, fmt.Errorf("change bus required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	guardTTL := params.GuardTTL
	if guardTTL <= 0 {
		guardTTL = defaultGuardTTL
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repo,
		db:       params.DB,
		outbox:   params.Outbox,
		guard:    params.Guard,
		bus:      params.Bus,
		metrics:  params.Metrics,
		logg:     params.Logger,
		open:     !params.StrictTransitions,
		guardTTL: guardTTL,
		pageSize: params.HistoryPageSize,
		now:      clock,
	}, nil
}

// SetStatus applies one lifecycle transition. Re-setting the current status
// succeeds without writing anything.
func (s *service) SetStatus(ctx context.Context, input SetStatusInput) (*OrderDTO, error) {
	ctx, span := tracer.Start(ctx, "orders.SetStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", input.OrderID.String()),
		attribute.String("order.status", input.Status.String()),
	)

	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var (
		result  *models.Order
		from    enums.OrderStatus
		changed bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, input.TenantID, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, orderNotFoundMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		result = order
		from = order.Status
		if order.Status == input.Status {
			return nil
		}
		if !CanTransition(order.Status, input.Status, order.DeliveryMethod, s.open) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]any{
					"from":    order.Status,
					"to":      input.Status,
					"allowed": AllowedTransitions(order.Status, order.DeliveryMethod, s.open),
				})
		}

		at := s.now().UTC().Truncate(time.Microsecond)
		if err := repo.UpdateStatus(ctx, order.TenantID, order.ID, input.Status, at); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = input.Status
		order.UpdatedAt = &at
		changed = true

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    at,
			Actor:         outbox.OwnerActor(input.ActorUserID, order.TenantID),
			Data:          orderStatusChangedEvent(order, from, at),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set order status")
	}

	if changed {
		s.metrics.IncTransition(from.String(), input.Status.String())
		s.notify(ctx, result.TenantID, result.ID)
	}
	dto := newOrderDTO(result, s.open)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, orderNotFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := newOrderDTO(order, s.open)
	return &dto, nil
}

// Snapshot reads every order of the tenant, newest first. HasNew is set when
// any order still sits in New.
func (s *service) Snapshot(ctx context.Context, tenantID uuid.UUID) (*Snapshot, error) {
	rows, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	snap := &Snapshot{
		TenantID:    tenantID,
		Orders:      make([]OrderDTO, 0, len(rows)),
		GeneratedAt: s.now().UTC(),
	}
	for i := range rows {
		if rows[i].Status == enums.OrderStatusNew {
			snap.HasNew = true
		}
		snap.Orders = append(snap.Orders, newOrderDTO(&rows[i], s.open))
	}
	return snap, nil
}

func (s *service) History(ctx context.Context, tenantID uuid.UUID, input HistoryInput) (*pagination.Page[OrderDTO], error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	limit := pagination.NormalizeLimit(input.Limit, s.pageSize)
	rows, err := s.repo.ListPage(ctx, tenantID, cursor, input.Status, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order history")
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, newOrderDTO(&rows[i], s.open))
	}
	page := pagination.Trim(dtos, limit, func(o OrderDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}

// notify tells live feeds to re-read. Failures only delay the operator view.
func (s *service) notify(ctx context.Context, tenantID, orderID uuid.UUID) {
	if err := s.bus.Notify(ctx, tenantID, orderID); err != nil {
		logCtx := s.logg.WithTenantID(ctx, tenantID.String())
		logCtx = s.logg.WithOrderID(logCtx, orderID.String())
		s.logg.Warn(logCtx, "orders.notify_failed: "+err.Error())
	}
}
