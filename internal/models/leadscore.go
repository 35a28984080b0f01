package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TemperatureCold   = "cold"
	TemperatureWarm   = "warm"
	TemperatureHot    = "hot"
	TemperatureOnFire = "on_fire"
)

// ScoreHistoryMax bounds the history list; oldest entries are dropped first.
const ScoreHistoryMax = 50

// LeadScore keeps one bounded score record per conversation.
// Factors is a map[string]float64 and History a []ScoreHistoryEntry,
// both stored as jsonb.
type LeadScore struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string         `gorm:"column:conversation_id;type:uuid;uniqueIndex" json:"conversation_id"`
	Score          int            `gorm:"column:score" json:"score"` // always in [0,100]
	Temperature    string         `gorm:"column:temperature;type:text" json:"temperature"`
	BuyingStage    string         `gorm:"column:buying_stage;type:text" json:"buying_stage,omitempty"`
	Factors        datatypes.JSON `gorm:"column:factors;type:jsonb" json:"factors,omitempty"`
	History        datatypes.JSON `gorm:"column:history;type:jsonb" json:"history,omitempty"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (LeadScore) TableName() string { return "lead_scores" }

type ScoreHistoryEntry struct {
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// TemperatureFor maps a score to its bucket. It is a pure function of the
// final score and is never derived from history.
func TemperatureFor(score int) string {
	switch {
	case score >= 80:
		return TemperatureOnFire
	case score >= 60:
		return TemperatureHot
	case score >= 30:
		return TemperatureWarm
	default:
		return TemperatureCold
	}
}
