package domain

type CheckoutStatus string

const (
	CheckoutStatusLoading    CheckoutStatus = "LOADING"
	CheckoutStatusEmpty      CheckoutStatus = "EMPTY"
	CheckoutStatusFilled     CheckoutStatus = "FILLED"
	CheckoutStatusSubmitting CheckoutStatus = "SUBMITTING"
	CheckoutStatusSubmitted  CheckoutStatus = "SUBMITTED"
)

var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusLoading:    {CheckoutStatusEmpty, CheckoutStatusFilled},
	CheckoutStatusFilled:     {CheckoutStatusSubmitting},
	CheckoutStatusSubmitting: {CheckoutStatusSubmitted, CheckoutStatusFilled},
}

// CanTransitionTo reports whether the pipeline may move from one status to another.
func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusEmpty || s == CheckoutStatusSubmitted
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
