package orders

import "github.com/angelmondragon/menuboard-backend/pkg/enums"

// transitions is the allow-list for strict mode. Ready fans out on the
// delivery method; Cancelled is absorbing.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusNew:       {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing: {enums.OrderStatusReady, enums.OrderStatusCancelled},
	enums.OrderStatusReady:     {enums.OrderStatusDelivered, enums.OrderStatusPickedUp, enums.OrderStatusCancelled},
	enums.OrderStatusDelivered: {enums.OrderStatusCancelled},
	enums.OrderStatusPickedUp:  {enums.OrderStatusCancelled},
	enums.OrderStatusCancelled: nil,
}

// AllowedTransitions lists the statuses an order may move to next. Open
// mode allows every other status, including leaving Cancelled.
func AllowedTransitions(from enums.OrderStatus, method enums.DeliveryMethod, open bool) []enums.OrderStatus {
	if open {
		out := make([]enums.OrderStatus, 0, len(enums.OrderStatuses())-1)
		for _, status := range enums.OrderStatuses() {
			if status != from {
				out = append(out, status)
			}
		}
		return out
	}
	out := make([]enums.OrderStatus, 0, 3)
	for _, to := range transitions[from] {
		if to == enums.OrderStatusDelivered && method != enums.DeliveryMethodDelivery {
			continue
		}
		if to == enums.OrderStatusPickedUp && method != enums.DeliveryMethodPickup {
			continue
		}
		out = append(out, to)
	}
	return out
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to enums.OrderStatus, method enums.DeliveryMethod, open bool) bool {
	for _, candidate := range AllowedTransitions(from, method, open) {
		if candidate == to {
			return true
		}
	}
	return false
}
