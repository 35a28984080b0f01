package models

import "time"

type Label struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;type:text;uniqueIndex" json:"name"`
	Color     string    `gorm:"column:color;type:text" json:"color,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Label) TableName() string { return "labels" }

// ConversationLabel joins conversations to labels. (conversation_id, label_id)
// is unique so re-assigning the same label is an update, never a duplicate.
type ConversationLabel struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;type:uuid;uniqueIndex:idx_conversation_labels_pair" json:"conversation_id"`
	LabelID        string    `gorm:"column:label_id;type:uuid;uniqueIndex:idx_conversation_labels_pair" json:"label_id"`
	Source         string    `gorm:"column:source;type:text" json:"source"` // intent|ai|manual
	AssignedAt     time.Time `gorm:"column:assigned_at;type:timestamptz" json:"assigned_at"`
}

func (ConversationLabel) TableName() string { return "conversation_labels" }
