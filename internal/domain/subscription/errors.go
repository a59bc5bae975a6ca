package subscription

import "buildadvisor/internal/pkg/apperr"

var (
	ErrNoSubscription = apperr.New(apperr.KindNotFound, "No subscription was found for your account.")
	ErrPlanRequired   = apperr.New(apperr.KindInvalidInput, "plan is required.")
	ErrUnknownPlan    = apperr.New(apperr.KindInvalidInput, "plan must be one of blue, green or gold.")
	ErrPriceMissing   = apperr.New(apperr.KindConfiguration, "This plan is not available right now. Please contact support.")
	ErrAlreadyOnPlan  = apperr.New(apperr.KindNoOp, "You are already on this plan. Please choose a different one.")
	ErrNoItems        = apperr.New(apperr.KindReconciliation, "Your subscription has no billable items. Please contact support.")
	ErrProvider       = apperr.New(apperr.KindUpstream, "The payment service is unavailable. Please try again later.")
)
