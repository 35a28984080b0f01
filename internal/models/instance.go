package models

import "time"

const (
	InstanceConnected    = "connected"
	InstanceDisconnected = "disconnected"
)

// Instance is one connected channel number (a provider session owned by an org).
type Instance struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrgID       string    `gorm:"column:org_id;type:uuid;index" json:"org_id"`
	Name        string    `gorm:"column:name;type:text" json:"name"`
	PhoneNumber string    `gorm:"column:phone_number;type:text" json:"phone_number"`
	Status      string    `gorm:"column:status;type:text" json:"status"` // connected|disconnected
	APIToken    string    `gorm:"column:api_token;type:text" json:"-"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Instance) TableName() string { return "instances" }

// AutomationSettings holds the per-instance AI configuration. One row per instance.
type AutomationSettings struct {
	ID         string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InstanceID string `gorm:"column:instance_id;type:uuid;uniqueIndex" json:"instance_id"`

	EnableMemory    bool `gorm:"column:enable_memory" json:"enable_memory"`
	EnableFollowUps bool `gorm:"column:enable_follow_ups" json:"enable_follow_ups"`
	EnableAutoLabel bool `gorm:"column:enable_auto_label" json:"enable_auto_label"`

	// Quiet hours window in "HH:MM" local time. Empty start disables the window.
	QuietHoursStart string `gorm:"column:quiet_hours_start;type:text" json:"quiet_hours_start"`
	QuietHoursEnd   string `gorm:"column:quiet_hours_end;type:text" json:"quiet_hours_end"`
	Timezone        string `gorm:"column:timezone;type:text" json:"timezone"` // IANA name, ex: America/Sao_Paulo

	MaxActiveFollowUps  int `gorm:"column:max_active_follow_ups;default:3" json:"max_active_follow_ups"`
	FollowUpMaxRetries  int `gorm:"column:follow_up_max_retries;default:3" json:"follow_up_max_retries"`
	RetryBackoffMinutes int `gorm:"column:retry_backoff_minutes;default:0" json:"retry_backoff_minutes"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (AutomationSettings) TableName() string { return "automation_settings" }
