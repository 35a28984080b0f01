package models

import "time"

// ChatMemory is a durable fact extracted from the conversation.
// (conversation_id, key) is unique: writing the same key again overwrites
// value/context/confidence instead of inserting a second row.
type ChatMemory struct {
	ID              string  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID  string  `gorm:"column:conversation_id;type:uuid;uniqueIndex:idx_chat_memories_conv_key" json:"conversation_id"`
	Key             string  `gorm:"column:key;type:text;uniqueIndex:idx_chat_memories_conv_key" json:"key"`
	MemoryType      string  `gorm:"column:memory_type;type:text" json:"memory_type"`
	Value           string  `gorm:"column:value;type:text" json:"value"`
	Context         string  `gorm:"column:context;type:text" json:"context"`
	Confidence      float64 `gorm:"column:confidence" json:"confidence"`
	SourceMessageID *string `gorm:"column:source_message_id;type:uuid" json:"source_message_id,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (ChatMemory) TableName() string { return "chat_memories" }
