package models

import (
	"time"

	"gorm.io/datatypes"
)

// PendingWork is a submitted work report awaiting operator disposition.
// Approval and rejection both delete the row; its absence after disposition
// is what makes a double-approve impossible.
type PendingWork struct {
	ID string `gorm:"type:text;primaryKey"` // Generated UUID.

	ActionID int64 `gorm:"not null"` // Numeric ledger action identifier.

	GardenerAddress    string `gorm:"type:text;not null"` // Submitter's ledger address.
	GardenerPlatform   string `gorm:"type:text;not null"` // Submitter's chat platform.
	GardenerPlatformID string `gorm:"type:text;not null"` // Submitter's platform-scoped id.

	GardenAddress string `gorm:"type:text;not null;index"` // Garden the work belongs to.

	Data datatypes.JSON `gorm:"type:json;not null"` // Structured work draft (title, items, feedback, media).

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Submission timestamp.
}

// TableName overrides the default table name.
func (PendingWork) TableName() string { return "pending_works" }
