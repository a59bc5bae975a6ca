package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"buildadvisor/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the Usage Ledger. It is the only writer of usage_counts.
type Repository interface {
	// Read returns zero counters when the user has no row yet.
	Read(ctx context.Context, userID string) (Counters, error)
	// IncrementAfterSuccess records one generated answer. free_answers_used
	// only moves when isPaid is false.
	IncrementAfterSuccess(ctx context.Context, userID string, isPaid bool) error
	// Touch stamps updated_at without changing any counter.
	Touch(ctx context.Context, userID string) error
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) Read(ctx context.Context, userID string) (Counters, error) {
	var c Counters
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Counters{UserID: userID}, nil
		}
		return Counters{}, database.Wrap("read usage counters", err)
	}
	return c, nil
}

func (r *repository) IncrementAfterSuccess(ctx context.Context, userID string, isPaid bool) error {
	now := r.now().UTC()
	row := Counters{
		UserID:       userID,
		TotalAnswers: 1,
		LastAnswerAt: sql.NullTime{Time: now, Valid: true},
		UpdatedAt:    now,
	}
	// Relative updates: concurrent answers from one user never overwrite each other.
	set := map[string]any{
		"total_answers":  gorm.Expr("usage_counts.total_answers + 1"),
		"last_answer_at": now,
		"updated_at":     now,
	}
	if !isPaid {
		row.FreeAnswersUsed = 1
		set["free_answers_used"] = gorm.Expr("usage_counts.free_answers_used + 1")
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(set),
		}).
		Create(&row).Error
	return database.Wrap("increment usage counters", err)
}

func (r *repository) Touch(ctx context.Context, userID string) error {
	row := Counters{UserID: userID, UpdatedAt: r.now().UTC()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).
		Create(&row).Error
	return database.Wrap("touch usage counters", err)
}
