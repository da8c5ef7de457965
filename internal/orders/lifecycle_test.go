package orders

import (
	"testing"

	"github.com/angelmondragon/menuboard-backend/pkg/enums"
)

func TestAllowedTransitionsStrict(t *testing.T) {
	cases := []struct {
		from   enums.OrderStatus
		method enums.DeliveryMethod
		want   []enums.OrderStatus
	}{
		{enums.OrderStatusNew, enums.DeliveryMethodDelivery, []enums.OrderStatus{enums.OrderStatusPreparing, enums.OrderStatusCancelled}},
		{enums.OrderStatusPreparing, enums.DeliveryMethodPickup, []enums.OrderStatus{enums.OrderStatusReady, enums.OrderStatusCancelled}},
		{enums.OrderStatusReady, enums.DeliveryMethodDelivery, []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled}},
		{enums.OrderStatusReady, enums.DeliveryMethodPickup, []enums.OrderStatus{enums.OrderStatusPickedUp, enums.OrderStatusCancelled}},
		{enums.OrderStatusDelivered, enums.DeliveryMethodDelivery, []enums.OrderStatus{enums.OrderStatusCancelled}},
		{enums.OrderStatusCancelled, enums.DeliveryMethodPickup, []enums.OrderStatus{}},
	}
	for _, tc := range cases {
		got := AllowedTransitions(tc.from, tc.method, false)
		if len(got) != len(tc.want) {
			t.Fatalf("%s/%s: expected %v, got %v", tc.from, tc.method, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s/%s: expected %v, got %v", tc.from, tc.method, tc.want, got)
			}
		}
	}
}

func TestCanTransitionRejectsSkipsAndBackwardMoves(t *testing.T) {
	if CanTransition(enums.OrderStatusNew, enums.OrderStatusReady, enums.DeliveryMethodPickup, false) {
		t.Fatal("New -> Ready must not skip Preparing")
	}
	if CanTransition(enums.OrderStatusReady, enums.OrderStatusPreparing, enums.DeliveryMethodPickup, false) {
		t.Fatal("backward move allowed in strict mode")
	}
	if CanTransition(enums.OrderStatusReady, enums.OrderStatusDelivered, enums.DeliveryMethodPickup, false) {
		t.Fatal("pickup order must not be delivered")
	}
	if !CanTransition(enums.OrderStatusPickedUp, enums.OrderStatusCancelled, enums.DeliveryMethodPickup, false) {
		t.Fatal("completed orders may still be cancelled")
	}
}

func TestOpenModeAllowsAnyToAny(t *testing.T) {
	for _, from := range enums.OrderStatuses() {
		got := AllowedTransitions(from, enums.DeliveryMethodPickup, true)
		if len(got) != len(enums.OrderStatuses())-1 {
			t.Fatalf("%s: expected every other status, got %v", from, got)
		}
		for _, to := range enums.OrderStatuses() {
			if to == from {
				continue
			}
			if !CanTransition(from, to, enums.DeliveryMethodPickup, true) {
				t.Fatalf("open mode should allow %s -> %s", from, to)
			}
		}
	}
	if !CanTransition(enums.OrderStatusCancelled, enums.OrderStatusNew, enums.DeliveryMethodPickup, true) {
		t.Fatal("open mode should allow reopening a cancelled order")
	}
	if !CanTransition(enums.OrderStatusNew, enums.OrderStatusDelivered, enums.DeliveryMethodPickup, true) {
		t.Fatal("open mode ignores the delivery method")
	}
}
