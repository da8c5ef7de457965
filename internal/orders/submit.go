package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/angelmondragon/menuboard-backend/internal/cart"
	"github.com/angelmondragon/menuboard-backend/internal/tenants"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/payloads"
)

const (
	emptyCartMessage      = "cart is empty"
	missingContactMessage = "name and phone are required"
	missingAddressMessage = "address is required for delivery"
	submissionFailedMsg   = "order could not be submitted, please try again"
	inProgressMessage     = "order submission already in progress"
)

// PlaceOrder validates the checkout form, freezes the cart into an order and
// stores it together with its order_created event. Nothing is written when a
// precondition fails, and a failed write is never retried here.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error) {
	ctx, span := tracer.Start(ctx, "orders.PlaceOrder")
	defer span.End()

	dto, err := s.placeOrder(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.IncRejected(string(typed.Code()))
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", dto.ID.String()))
	s.metrics.IncSubmitted(dto.DeliveryMethod.String())
	return dto, nil
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error) {
	if input.Cart == nil || input.Cart.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, emptyCartMessage)
	}
	name := strings.TrimSpace(input.Customer.Name)
	phone := strings.TrimSpace(input.Customer.Phone)
	if name == "" || phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingContactInfo, missingContactMessage)
	}
	address := strings.TrimSpace(input.Customer.Address)
	method, methodErr := enums.ParseDeliveryMethod(input.DeliveryMethod)
	if methodErr == nil && method.RequiresAddress() && address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingAddress, missingAddressMessage)
	}
	if methodErr != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery_method must be delivery or pickup")
	}
	payment, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_method must be cash, card or pix")
	}
	if input.Tenant == nil || input.Tenant.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
	}
	if !method.RequiresAddress() {
		address = ""
	}

	release, err := s.acquireGuard(ctx, input.CartID)
	if err != nil {
		return nil, err
	}
	defer release()

	frozen, err := s.claimCart(ctx, input)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	items := itemsFromCart(frozen)
	order := &models.Order{
		ID:              uuid.New(),
		TenantID:        input.Tenant.ID,
		TenantName:      tenants.DisplayName(input.Tenant),
		CustomerName:    name,
		CustomerPhone:   phone,
		CustomerAddress: address,
		CustomerNotes:   strings.TrimSpace(input.Notes),
		DeliveryMethod:  method,
		PaymentMethod:   payment,
		Items:           items,
		Total:           frozen.Total(),
		Status:          enums.OrderStatusNew,
		CreatedAt:       now,
	}
	if input.CartID != uuid.Nil {
		cartID := input.CartID
		order.CartID = &cartID
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Actor:         outbox.CustomerActor(order.TenantID),
			Data: payloads.OrderCreatedEvent{
				OrderID:        order.ID,
				TenantID:       order.TenantID,
				Status:         order.Status,
				DeliveryMethod: order.DeliveryMethod,
				PaymentMethod:  order.PaymentMethod,
				ItemCount:      frozen.ItemCount(),
				Total:          order.Total,
				CreatedAt:      order.CreatedAt,
			},
		})
	})
	if err != nil {
		logCtx := s.logg.WithTenantID(ctx, order.TenantID.String())
		s.logg.Error(logCtx, "orders.submit_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, err, submissionFailedMsg)
	}

	// consumed before the guard is released so a queued retry sees an empty cart
	if input.Claim != nil {
		if err := input.Claim.Consume(ctx); err != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Warn(logCtx, "orders.cart_consume_failed: "+err.Error())
		}
	}

	s.notify(ctx, order.TenantID, order.ID)
	dto := newOrderDTO(order, s.open)
	return &dto, nil
}

// claimCart returns the cart to freeze. A claimed cart is reloaded under the
// guard, so a submission that raced an earlier one finds it already emptied.
func (s *service) claimCart(ctx context.Context, input PlaceOrderInput) (*cart.Cart, error) {
	if input.Claim == nil {
		return input.Cart, nil
	}
	current, err := input.Claim.Load(ctx)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeEmptyCart, err, emptyCartMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, err, submissionFailedMsg)
	}
	if current == nil || current.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, emptyCartMessage)
	}
	return current, nil
}

// acquireGuard takes the per-cart submission slot. Orders without a cart id
// (direct API use) are not guarded.
func (s *service) acquireGuard(ctx context.Context, cartID uuid.UUID) (func(), error) {
	if cartID == uuid.Nil {
		return func() {}, nil
	}
	key := s.guard.SubmitGuardKey(cartID.String())
	token := uuid.NewString()
	ok, err := s.guard.AcquireLock(ctx, key, token, s.guardTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, err, submissionFailedMsg)
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeSubmissionInProgress, inProgressMessage)
	}
	return func() {
		// the request context may already be cancelled; the lock must still go
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if _, err := s.guard.ReleaseLock(releaseCtx, key, token); err != nil {
			s.logg.Warn(ctx, "orders.guard_release_failed: "+err.Error())
		}
	}, nil
}

func orderStatusChangedEvent(order *models.Order, from enums.OrderStatus, at time.Time) payloads.OrderStatusChangedEvent {
	return payloads.OrderStatusChangedEvent{
		OrderID:   order.ID,
		TenantID:  order.TenantID,
		From:      from,
		To:        order.Status,
		ChangedAt: at,
	}
}
