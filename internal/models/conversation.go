package models

import (
	"time"

	"gorm.io/datatypes"
)

type Conversation struct {
	ID             string  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InstanceID     string  `gorm:"column:instance_id;type:uuid;index" json:"instance_id"`
	Phone          string  `gorm:"column:phone;type:text;index" json:"phone"`
	AIActive       bool    `gorm:"column:ai_active;default:true" json:"ai_active"`
	AIPausedReason *string `gorm:"column:ai_paused_reason;type:text" json:"ai_paused_reason,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message is append-only; ProviderMessageID correlates delivery status events.
type Message struct {
	ID                string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID    string         `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`
	Direction         string         `gorm:"column:direction;type:text" json:"direction"` // inbound|outbound
	Body              string         `gorm:"column:body;type:text" json:"body"`
	ProviderMessageID string         `gorm:"column:provider_message_id;type:text;index" json:"provider_message_id"`
	Payload           datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	Timestamp         time.Time      `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }
