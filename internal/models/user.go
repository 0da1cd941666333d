package models

import "time"

// Role values assignable to a user.
const (
	// RoleGardener may submit work for a joined garden.
	RoleGardener = "gardener"
	// RoleOperator may additionally approve or reject pending work.
	RoleOperator = "operator"
)

// User represents a chat user with a custodial signing key.
type User struct {
	Platform   string `gorm:"type:text;not null;primaryKey"` // Chat platform identifier (e.g. "telegram").
	PlatformID string `gorm:"type:text;not null;primaryKey"` // Platform-scoped user id.

	EncryptedPrivateKey string `gorm:"type:text;not null"`      // Vault envelope (or legacy plaintext pending migration).
	Address             string `gorm:"type:text;not null;index"` // Ledger address derived from the key at creation.

	CurrentGarden *string `gorm:"type:text"`                              // Joined garden address, nil until /join.
	Role          string  `gorm:"type:text;not null;default:'gardener'"` // gardener or operator.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (User) TableName() string { return "users" }
