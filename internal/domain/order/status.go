package order

// FulfillmentStatus tracks the physical delivery progress of an order.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentShipping  FulfillmentStatus = "shipping"
	FulfillmentDelivered FulfillmentStatus = "delivered"
	FulfillmentCancelled FulfillmentStatus = "cancelled"
)

// PaymentStatus tracks monetary settlement, independent of fulfillment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// fulfillmentTransitions is the legal-move table. Delivered and cancelled
// are terminal: no outgoing edges.
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:  {FulfillmentShipping, FulfillmentCancelled},
	FulfillmentShipping: {FulfillmentDelivered, FulfillmentCancelled},
}

// paymentTransitions is the legal-move table for settlement. Failed and
// refunded are terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentPaid:    {PaymentRefunded},
}

// CanTransitionFulfillment reports whether from -> to is a legal
// fulfillment move.
func CanTransitionFulfillment(from, to FulfillmentStatus) bool {
	for _, next := range fulfillmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether from -> to is a legal payment move.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseFulfillmentStatus validates a wire value against the enum.
func ParseFulfillmentStatus(s string) (FulfillmentStatus, bool) {
	switch FulfillmentStatus(s) {
	case FulfillmentPending, FulfillmentShipping, FulfillmentDelivered, FulfillmentCancelled:
		return FulfillmentStatus(s), true
	}
	return "", false
}

// ParsePaymentStatus validates a wire value against the enum.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return PaymentStatus(s), true
	}
	return "", false
}
