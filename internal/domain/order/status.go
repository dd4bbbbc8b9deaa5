package order

// Status is the order lifecycle state.
//
// Lifecycle: pending → paid → shipped → delivered, with cancellation
// allowed from pending and paid. delivered and canceled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCanceled  Status = "canceled"
)

// Cancelable reports whether an order in this state may still be canceled.
func (s Status) Cancelable() bool {
	return s == StatusPending || s == StatusPaid
}

// Terminal reports whether this state admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}
