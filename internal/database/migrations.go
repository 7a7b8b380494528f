package database

import (
	"errors"
	"time"

	"github.com/rangeops/doctrine/backend/internal/content"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationClearDanglingLockHolders = "2026-08-12_clear_dangling_lock_holders"

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
		{name: migrationClearDanglingLockHolders, apply: clearDanglingLockHolders},
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

// clearDanglingLockHolders resets lock holder columns on rows where the lock
// flag was already cleared, left over from pre-registry builds.
func clearDanglingLockHolders(db *gorm.DB) error {
	return db.Model(&content.Item{}).
		Where("is_locked = ?", false).
		Updates(map[string]interface{}{"locked_by": nil, "locked_at_s": nil}).Error
}
