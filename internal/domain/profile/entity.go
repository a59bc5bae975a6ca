package profile

import (
	"database/sql"
	"time"

	"buildadvisor/internal/domain/billing"
)

// UserProfile is the local mirror of a user's subscription at the payment provider.
// One row per identity-provider user id, created lazily on first checkout.
type UserProfile struct {
	UserID           string         `gorm:"column:user_id;primaryKey" json:"user_id"`
	Plan             sql.NullString `gorm:"column:plan" json:"plan"`
	Status           sql.NullString `gorm:"column:status" json:"status"`
	CustomerID       sql.NullString `gorm:"column:customer_id" json:"customer_id"`
	SubscriptionID   sql.NullString `gorm:"column:subscription_id" json:"subscription_id"`
	CurrentPeriodEnd sql.NullTime   `gorm:"column:current_period_end" json:"current_period_end"`
	CancelAt         sql.NullTime   `gorm:"column:cancel_at" json:"cancel_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }

func (p *UserProfile) PlanValue() (billing.Plan, bool) {
	if p == nil || !p.Plan.Valid {
		return "", false
	}
	return billing.NormalizePlan(p.Plan.String)
}

func (p *UserProfile) StatusValue() (billing.Status, bool) {
	if p == nil || !p.Status.Valid {
		return "", false
	}
	return billing.ParseStoredStatus(p.Status.String)
}

// HasActivePlan reports whether the mirrored status grants paid access.
func (p *UserProfile) HasActivePlan() bool {
	s, ok := p.StatusValue()
	return ok && s.Billable()
}

func (p *UserProfile) SubscriptionIDValue() string {
	if p == nil || !p.SubscriptionID.Valid {
		return ""
	}
	return p.SubscriptionID.String
}

func (p *UserProfile) CustomerIDValue() string {
	if p == nil || !p.CustomerID.Valid {
		return ""
	}
	return p.CustomerID.String
}

func (p *UserProfile) PeriodEnd() *time.Time {
	if p == nil || !p.CurrentPeriodEnd.Valid {
		return nil
	}
	t := p.CurrentPeriodEnd.Time
	return &t
}

func (p *UserProfile) CancelAtTime() *time.Time {
	if p == nil || !p.CancelAt.Valid {
		return nil
	}
	t := p.CancelAt.Time
	return &t
}

// Field is one column of a partial write. The zero Field is "not supplied"
// and leaves the stored column untouched.
type Field[T any] struct {
	set   bool
	value *T
}

// Set supplies a value for the column.
func Set[T any](v T) Field[T] {
	return Field[T]{set: true, value: &v}
}

// SetPtr supplies a value, writing NULL when p is nil.
func SetPtr[T any](p *T) Field[T] {
	if p == nil {
		return Field[T]{set: true}
	}
	return Set(*p)
}

// SetNonEmpty supplies v only when it is not the zero value; otherwise the column is left alone.
func SetNonEmpty[T comparable](v T) Field[T] {
	var zero T
	if v == zero {
		return Field[T]{}
	}
	return Set(v)
}

func (f Field[T]) Supplied() bool { return f.set }

// Update lists the mirror columns a reconciliation step knows about.
type Update struct {
	Plan             Field[billing.Plan]
	Status           Field[billing.Status]
	CustomerID       Field[string]
	SubscriptionID   Field[string]
	CurrentPeriodEnd Field[time.Time]
	CancelAt         Field[time.Time]
}
