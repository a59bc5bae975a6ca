package checkout

import "buildadvisor/internal/pkg/apperr"

var (
	ErrPlanRequired     = apperr.New(apperr.KindInvalidInput, "plan is required.")
	ErrUnknownPlan      = apperr.New(apperr.KindInvalidInput, "plan must be one of blue, green or gold.")
	ErrSessionIDMissing = apperr.New(apperr.KindInvalidInput, "sessionId is required.")
	ErrSessionNotFound  = apperr.New(apperr.KindInvalidInput, "sessionId does not match a checkout session.")
	ErrPriceMissing     = apperr.New(apperr.KindConfiguration, "This plan is not available right now. Please contact support.")
	ErrProvider         = apperr.New(apperr.KindUpstream, "The payment service is unavailable. Please try again later.")
	ErrNotSessionOwner  = apperr.New(apperr.KindForbidden, "This checkout session belongs to another account.")

	ErrPaymentIncomplete = apperr.New(apperr.KindPaymentIncomplete,
		"Your payment has not completed yet. Please wait a moment and try again.")
	ErrPlanUnresolved    = apperr.New(apperr.KindReconciliation,
		"We could not determine the purchased plan. Please contact support.")
)

// IncompleteError reports a session that is not paid yet, with the provider's payment status.
type IncompleteError struct {
	PaymentStatus string
}

func (e *IncompleteError) Error() string {
	return ErrPaymentIncomplete.Message + " (payment_status=" + e.PaymentStatus + ")"
}

func (e *IncompleteError) Unwrap() error { return ErrPaymentIncomplete }
