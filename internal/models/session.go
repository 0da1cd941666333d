package models

import (
	"time"

	"gorm.io/datatypes"
)

// Session step values. A missing session row is equivalent to StepIdle.
const (
	// StepIdle means no conversation flow is in progress.
	StepIdle = "idle"
	// StepConfirmingWork means a parsed work draft awaits a yes/no.
	StepConfirmingWork = "confirming_work"
	// StepApprovingWork is reserved for a future multi-step approval flow.
	StepApprovingWork = "approving_work"
	// StepRejectingWork is reserved for a future multi-step rejection flow.
	StepRejectingWork = "rejecting_work"
)

// Session holds per-user conversation state. At most one row per user.
type Session struct {
	Platform   string `gorm:"type:text;not null;primaryKey"` // Chat platform identifier.
	PlatformID string `gorm:"type:text;not null;primaryKey"` // Platform-scoped user id.

	Step  string         `gorm:"type:text;not null"` // Current conversation step.
	Draft datatypes.JSON `gorm:"type:json"`          // Step-specific draft payload, shape keyed by Step.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last mutation timestamp.
}

// TableName overrides the default table name.
func (Session) TableName() string { return "sessions" }
