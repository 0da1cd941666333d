package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/greenledger/gardenbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store persists users, sessions, and pending work via GORM.
type Store struct {
	db *gorm.DB
}

// New constructs a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for migrations and tests.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, errDB := s.db.DB()
	if errDB != nil {
		return fmt.Errorf("store: access pool: %w", errDB)
	}
	return sqlDB.Close()
}

// GetUser loads a user by platform identity. Returns ErrNotFound on miss.
func (s *Store) GetUser(ctx context.Context, platform, platformID string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("platform = ? AND platform_id = ?", platform, platformID).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get user: %w", errFind)
	}
	return &user, nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	if user == nil {
		return fmt.Errorf("store: nil user")
	}
	if errCreate := s.db.WithContext(ctx).Create(user).Error; errCreate != nil {
		return fmt.Errorf("store: create user: %w", errCreate)
	}
	return nil
}

// UpdateUser persists mutable user fields (key envelope, garden, role).
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	if user == nil {
		return fmt.Errorf("store: nil user")
	}
	errSave := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("platform = ? AND platform_id = ?", user.Platform, user.PlatformID).
		Updates(map[string]any{
			"encrypted_private_key": user.EncryptedPrivateKey,
			"current_garden":        user.CurrentGarden,
			"role":                  user.Role,
		}).Error
	if errSave != nil {
		return fmt.Errorf("store: update user: %w", errSave)
	}
	return nil
}

// GetSession loads the session row for a user. A nil result with nil error
// means no session exists, which readers must treat as the idle step.
func (s *Store) GetSession(ctx context.Context, platform, platformID string) (*models.Session, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var session models.Session
	errFind := s.db.WithContext(ctx).
		Where("platform = ? AND platform_id = ?", platform, platformID).
		First(&session).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get session: %w", errFind)
	}
	return &session, nil
}

// SetSession upserts the session row for a user.
func (s *Store) SetSession(ctx context.Context, session *models.Session) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	if session == nil {
		return fmt.Errorf("store: nil session")
	}
	errUpsert := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "platform_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"step", "draft", "updated_at"}),
		}).
		Create(session).Error
	if errUpsert != nil {
		return fmt.Errorf("store: set session: %w", errUpsert)
	}
	return nil
}

// ClearSession removes the session row for a user. Missing rows are not an error.
func (s *Store) ClearSession(ctx context.Context, platform, platformID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	errDelete := s.db.WithContext(ctx).
		Where("platform = ? AND platform_id = ?", platform, platformID).
		Delete(&models.Session{}).Error
	if errDelete != nil {
		return fmt.Errorf("store: clear session: %w", errDelete)
	}
	return nil
}

// AddPendingWork inserts a pending work row.
func (s *Store) AddPendingWork(ctx context.Context, work *models.PendingWork) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	if work == nil {
		return fmt.Errorf("store: nil pending work")
	}
	if errCreate := s.db.WithContext(ctx).Create(work).Error; errCreate != nil {
		return fmt.Errorf("store: add pending work: %w", errCreate)
	}
	return nil
}

// GetPendingWork loads a pending work row by id. Returns ErrNotFound on miss.
func (s *Store) GetPendingWork(ctx context.Context, id string) (*models.PendingWork, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var work models.PendingWork
	errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&work).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get pending work: %w", errFind)
	}
	return &work, nil
}

// ListPendingWorksByGarden returns pending work for a garden, newest first.
func (s *Store) ListPendingWorksByGarden(ctx context.Context, gardenAddress string) ([]models.PendingWork, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var works []models.PendingWork
	errFind := s.db.WithContext(ctx).
		Where("garden_address = ?", gardenAddress).
		Order("created_at DESC").
		Find(&works).Error
	if errFind != nil {
		return nil, fmt.Errorf("store: list pending works: %w", errFind)
	}
	return works, nil
}

// RemovePendingWork deletes a pending work row and reports whether it existed.
func (s *Store) RemovePendingWork(ctx context.Context, id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("store: not initialized")
	}
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PendingWork{})
	if result.Error != nil {
		return false, fmt.Errorf("store: remove pending work: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
