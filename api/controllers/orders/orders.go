package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/menuboard-backend/api/controllers/requestctx"
	"github.com/angelmondragon/menuboard-backend/api/responses"
	"github.com/angelmondragon/menuboard-backend/api/validators"
	internalorders "github.com/angelmondragon/menuboard-backend/internal/orders"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/pagination"
	"github.com/angelmondragon/menuboard-backend/pkg/types"
)

const defaultHeartbeat = 25 * time.Second

// Feed is the live order view the operator endpoints read and act through.
type Feed interface {
	Snapshot(ctx context.Context, tenantID uuid.UUID) (*internalorders.Snapshot, error)
	Subscribe(ctx context.Context, tenantID uuid.UUID) (<-chan internalorders.Update, func())
	ChangeStatus(ctx context.Context, tenantID, orderID uuid.UUID, status enums.OrderStatus, actor uuid.UUID) (*internalorders.OrderDTO, error)
}

// Reader serves single orders and the archive.
type Reader interface {
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*internalorders.OrderDTO, error)
	History(ctx context.Context, tenantID uuid.UUID, input internalorders.HistoryInput) (*pagination.Page[internalorders.OrderDTO], error)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Snapshot returns the tenant's full order list, newest first.
func Snapshot(feed Feed, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := requestctx.TenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := feed.Snapshot(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

// Live streams snapshots as Server-Sent Events. Every change produces a
// complete replacement list tagged with its sequence number; comment lines
// keep idle connections open. A lost change stream ends with event: error.
func Live(feed Feed, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := requestctx.TenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Time{})

		updates, cancel := feed.Subscribe(r.Context(), tenantID)
		defer cancel()

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			logg.Warn(r.Context(), "orders.live_flush_unsupported: "+err.Error())
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Err != nil {
					logg.Error(r.Context(), "orders.live_stream_failed", update.Err)
					writeEvent(w, "error", "", types.APIError{
						Code:    string(pkgerrors.CodeDependency),
						Message: "live order feed unavailable",
					})
					_ = rc.Flush()
					return
				}
				if err := writeEvent(w, "snapshot", fmt.Sprint(update.Snapshot.Seq), update.Snapshot); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var b strings.Builder
	if id != "" {
		b.WriteString("id: " + id + "\n")
	}
	b.WriteString("event: " + event + "\n")
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
	_, err = fmt.Fprint(w, b.String())
	return err
}

// History pages through archived orders with ?limit=&cursor=&status=.
func History(reader Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := requestctx.TenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalorders.HistoryInput{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}

		page, err := reader.History(r.Context(), tenantID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, page.Items, page.NextCursor)
	}
}

// Detail returns one order of the owner's restaurant.
func Detail(reader Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := requestctx.TenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := requestctx.PathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := reader.Get(r.Context(), tenantID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateStatus moves an order to the requested lifecycle status.
func UpdateStatus(feed Feed, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := requestctx.TenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := requestctx.PathUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
				WithDetails(map[string]any{"allowed": enums.OrderStatuses()}))
			return
		}

		order, err := feed.ChangeStatus(r.Context(), tenantID, orderID, status, requestctx.UserID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
