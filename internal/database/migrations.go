package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationDropOrphanedCircleRows = "2026-04-18_drop_orphaned_circle_rows"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDropOrphanedCircleRows, apply: dropOrphanedCircleRows},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// dropOrphanedCircleRows removes membership and shared-note rows written
// before foreign keys were enforced, whose parent circle no longer exists.
func dropOrphanedCircleRows(db *gorm.DB) error {
	if err := db.Exec(
		"DELETE FROM circle_members WHERE circle_id NOT IN (SELECT id FROM circles)",
	).Error; err != nil {
		return err
	}
	return db.Exec(
		"DELETE FROM circle_notes WHERE circle_id NOT IN (SELECT id FROM circles)",
	).Error
}
