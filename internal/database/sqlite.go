package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/auth"
	"github.com/scribelab/scribes/internal/circles"
	"github.com/scribelab/scribes/internal/notes"
	"github.com/scribelab/scribes/internal/reminders"
	"github.com/scribelab/scribes/internal/users"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// Uniqueness violations are translated to gorm.ErrDuplicatedKey so callers
// can treat insert races as fall-back-to-update.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	// Cascade rules declared on the models only fire when SQLite enforces
	// foreign keys; the single connection keeps the pragma in effect.
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&users.User{},
		&auth.RefreshToken{},
		&notes.Note{},
		&circles.Circle{},
		&circles.CircleMember{},
		&circles.CircleNote{},
		&reminders.Reminder{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
