package models

import "time"

const (
	FollowUpPending    = "pending"
	FollowUpProcessing = "processing"
	FollowUpSent       = "sent"
	FollowUpCancelled  = "cancelled"
	FollowUpFailed     = "failed"
)

// FollowUp is a scheduled re-engagement message. Status moves one way:
// pending -> processing -> sent|failed, or pending -> cancelled. A quiet-hours
// deferral releases the row back to pending with a new trigger_at and does not
// consume retry budget. sent/cancelled/failed are terminal.
type FollowUp struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`
	TriggerAt      time.Time `gorm:"column:trigger_at;type:timestamptz;index" json:"trigger_at"`
	Status         string    `gorm:"column:status;type:text;index" json:"status"`
	Type           string    `gorm:"column:type;type:text" json:"type"`
	DetectedIntent string    `gorm:"column:detected_intent;type:text" json:"detected_intent"`

	// Typed generation context (not a free-form map).
	ContextForMessage string `gorm:"column:context_for_message;type:text" json:"context_for_message"`
	UrgencyHook       string `gorm:"column:urgency_hook;type:text" json:"urgency_hook,omitempty"`

	OriginalCustomerMessage string  `gorm:"column:original_customer_message;type:text" json:"original_customer_message"`
	GeneratedMessage        *string `gorm:"column:generated_message;type:text" json:"generated_message,omitempty"`

	RetryCount    int        `gorm:"column:retry_count;default:0" json:"retry_count"`
	MaxRetries    int        `gorm:"column:max_retries;default:3" json:"max_retries"`
	SentMessageID *string    `gorm:"column:sent_message_id;type:uuid" json:"sent_message_id,omitempty"`
	ClaimedAt     *time.Time `gorm:"column:claimed_at;type:timestamptz" json:"claimed_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (FollowUp) TableName() string { return "follow_ups" }

// Terminal reports whether the status can never change again.
func (f *FollowUp) Terminal() bool {
	switch f.Status {
	case FollowUpSent, FollowUpCancelled, FollowUpFailed:
		return true
	}
	return false
}
