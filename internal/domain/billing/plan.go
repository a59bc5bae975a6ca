package billing

import "strings"

// FreeAnswerLimit is the number of chat answers available without an active plan.
const FreeAnswerLimit = 3

// Plan identifies a service tier. It selects both the persona prompt and the billed price.
type Plan string

const (
	PlanBlue  Plan = "blue"
	PlanGreen Plan = "green"
	PlanGold  Plan = "gold"
)

// Status is the normalized billing state of a subscription.
type Status string

const (
	StatusActive     Status = "active"
	StatusIncomplete Status = "incomplete"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
)

// NormalizePlan lower-cases v and reports whether it names a known plan.
func NormalizePlan(v string) (Plan, bool) {
	switch p := Plan(strings.ToLower(v)); p {
	case PlanBlue, PlanGreen, PlanGold:
		return p, true
	}
	return "", false
}

// NormalizeStatus maps a provider status into the closed Status set.
//
// Any status this service does not recognise is treated as active. This is a
// fail-open policy carried over from the original billing flow; callers that
// reconcile provider data should log unknown values (see IsKnownStatus).
func NormalizeStatus(v string) Status {
	switch v {
	case "incomplete":
		return StatusIncomplete
	case "past_due":
		return StatusPastDue
	case "canceled", "unpaid", "incomplete_expired":
		return StatusCanceled
	}
	return StatusActive
}

// IsKnownStatus reports whether v is a provider status with an explicit mapping.
func IsKnownStatus(v string) bool {
	switch v {
	case "active", "trialing", "incomplete", "past_due", "canceled", "unpaid", "incomplete_expired", "paused":
		return true
	}
	return false
}

// ParseStoredStatus reads a mirrored status column. Unset and unexpected
// values stay unset instead of defaulting to active.
func ParseStoredStatus(v string) (Status, bool) {
	switch s := Status(v); s {
	case StatusActive, StatusIncomplete, StatusPastDue, StatusCanceled:
		return s, true
	}
	return "", false
}

// Billable reports whether the status grants paid access.
// Only canceled is terminal; a scheduled cancellation keeps the status billable.
func (s Status) Billable() bool {
	switch s {
	case StatusActive, StatusIncomplete, StatusPastDue:
		return true
	}
	return false
}

// RemainingFree returns how many free answers are left after used.
func RemainingFree(used int64) int64 {
	if left := int64(FreeAnswerLimit) - used; left > 0 {
		return left
	}
	return 0
}
