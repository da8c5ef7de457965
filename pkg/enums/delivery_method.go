package enums

type DeliveryMethod string

const (
	DeliveryMethodDelivery DeliveryMethod = "delivery"
	DeliveryMethodPickup   DeliveryMethod = "pickup"
)

var deliveryMethods = []DeliveryMethod{DeliveryMethodDelivery, DeliveryMethodPickup}

func (d DeliveryMethod) String() string { return string(d) }

func (d DeliveryMethod) IsValid() bool { return known(deliveryMethods, d) }

// RequiresAddress reports whether orders with this method must carry an address.
func (d DeliveryMethod) RequiresAddress() bool {
	return d == DeliveryMethodDelivery
}

func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	return parse("delivery method", deliveryMethods, value)
}
