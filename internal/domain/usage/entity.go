package usage

import (
	"database/sql"
	"time"
)

// Counters is the per-user answer ledger. Rows are created by the first
// successful chat answer and are never reset.
type Counters struct {
	UserID          string       `gorm:"column:user_id;primaryKey" json:"user_id"`
	TotalAnswers    int64        `gorm:"column:total_answers;not null" json:"total_answers"`
	FreeAnswersUsed int64        `gorm:"column:free_answers_used;not null" json:"free_answers_used"`
	LastAnswerAt    sql.NullTime `gorm:"column:last_answer_at" json:"last_answer_at"`
	UpdatedAt       time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Counters) TableName() string { return "usage_counts" }

func (c Counters) LastAnswer() *time.Time {
	if !c.LastAnswerAt.Valid {
		return nil
	}
	t := c.LastAnswerAt.Time
	return &t
}
