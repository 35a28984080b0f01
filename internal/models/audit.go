package models

import "time"

// AuditLog records every attempted or delivered automated action so support
// can reconstruct what the automation did and why.
type AuditLog struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`
	Actor          string    `gorm:"column:actor;type:text" json:"actor"` // ex: follow_up_worker
	Action         string    `gorm:"column:action;type:text" json:"action"`
	Intent         string    `gorm:"column:intent;type:text" json:"intent,omitempty"`
	Preview        string    `gorm:"column:preview;type:text" json:"preview,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
