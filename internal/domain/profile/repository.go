package profile

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"buildadvisor/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the Profile Mirror. It is the only writer of user_profiles.
type Repository interface {
	// Get returns ErrNotFound when the user has no row.
	Get(ctx context.Context, userID string) (*UserProfile, error)
	// Upsert writes the supplied columns only; unsupplied columns keep their stored value.
	Upsert(ctx context.Context, userID string, u Update) error
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) Get(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, database.Wrap("get profile", err)
	}
	return &p, nil
}

func (r *repository) Upsert(ctx context.Context, userID string, u Update) error {
	row := UserProfile{UserID: userID, UpdatedAt: r.now().UTC()}
	cols := []string{"updated_at"}

	if u.Plan.set {
		row.Plan = nullString(u.Plan.value)
		cols = append(cols, "plan")
	}
	if u.Status.set {
		row.Status = nullString(u.Status.value)
		cols = append(cols, "status")
	}
	if u.CustomerID.set {
		row.CustomerID = nullString(u.CustomerID.value)
		cols = append(cols, "customer_id")
	}
	if u.SubscriptionID.set {
		row.SubscriptionID = nullString(u.SubscriptionID.value)
		cols = append(cols, "subscription_id")
	}
	if u.CurrentPeriodEnd.set {
		row.CurrentPeriodEnd = nullTime(u.CurrentPeriodEnd.value)
		cols = append(cols, "current_period_end")
	}
	if u.CancelAt.set {
		row.CancelAt = nullTime(u.CancelAt.value)
		cols = append(cols, "cancel_at")
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(&row).Error
	return database.Wrap("upsert profile", err)
}

func nullString[T ~string](v *T) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}
