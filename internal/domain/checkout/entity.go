package checkout

import "time"

type RecordStatus string

const (
	RecordOpen     RecordStatus = "open"
	RecordComplete RecordStatus = "complete"
	RecordExpired  RecordStatus = "expired"
)

// Record is the audit trail of one checkout attempt. It is never read back
// for gating decisions.
type Record struct {
	SessionID string       `gorm:"column:session_id;primaryKey" json:"session_id"`
	UserID    string       `gorm:"column:user_id;index;not null" json:"user_id"`
	Plan      string       `gorm:"column:plan;not null" json:"plan"`
	Status    RecordStatus `gorm:"column:status;not null" json:"status"`
	CreatedAt time.Time    `gorm:"column:created_at" json:"created_at"`
}

func (Record) TableName() string { return "checkout_sessions" }
