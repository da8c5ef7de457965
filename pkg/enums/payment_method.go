package enums

// PaymentMethod says how the customer will pay on delivery or pickup.
// Nothing is charged server side.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodPix  PaymentMethod = "pix"
)

var paymentMethods = []PaymentMethod{PaymentMethodCash, PaymentMethodCard, PaymentMethodPix}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return known(paymentMethods, p) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", paymentMethods, value)
}
