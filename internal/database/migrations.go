package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/MarcoPoloResearchLab/carebook/internal/store"
)

const (
	migrationCollapseOneTimeRecurrence = "2025-01-20_collapse_onetime_recurrence"
	migrationBackfillEmptyRecurrence   = "2025-02-04_backfill_empty_recurrence"

	legacyOneTimeRecurrence = "ONETIME"
)

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
		{name: migrationCollapseOneTimeRecurrence, apply: collapseOneTimeRecurrence},
		{name: migrationBackfillEmptyRecurrence, apply: backfillEmptyRecurrence},
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

// collapseOneTimeRecurrence rewrites rows written with the legacy spelling.
func collapseOneTimeRecurrence(db *gorm.DB) error {
	return db.Model(&store.EventRecord{}).
		Where("recurrence = ?", legacyOneTimeRecurrence).
		Update("recurrence", string(events.RecurrenceOneTime)).Error
}

// backfillEmptyRecurrence applies the same DAILY default remote documents get.
func backfillEmptyRecurrence(db *gorm.DB) error {
	return db.Model(&store.EventRecord{}).
		Where("recurrence = ?", "").
		Update("recurrence", string(events.RecurrenceDaily)).Error
}
