package checkout

import (
	"context"
	"errors"

	"buildadvisor/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Save inserts the record or re-applies user, plan and status to an existing one.
	Save(ctx context.Context, rec *Record) error
	// Expire marks an open record expired. Completed records are left alone.
	Expire(ctx context.Context, sessionID string) error
	Get(ctx context.Context, sessionID string) (*Record, error)
}

var ErrRecordNotFound = errors.New("checkout record not found")

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Save(ctx context.Context, rec *Record) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "plan", "status"}),
		}).
		Create(rec).Error
	return database.Wrap("save checkout record", err)
}

func (r *repository) Expire(ctx context.Context, sessionID string) error {
	err := r.db.WithContext(ctx).
		Model(&Record{}).
		Where("session_id = ? AND status = ?", sessionID, RecordOpen).
		Update("status", RecordExpired).Error
	return database.Wrap("expire checkout record", err)
}

func (r *repository) Get(ctx context.Context, sessionID string) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, database.Wrap("get checkout record", err)
	}
	return &rec, nil
}
