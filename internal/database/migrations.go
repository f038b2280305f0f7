package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationTrimDrinkTitles = "2026-10-01_trim_drink_titles"

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

var registeredMigrations = []migrationDefinition{
	{name: migrationTrimDrinkTitles, apply: trimDrinkTitles},
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, migration := range registeredMigrations {
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
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// trimDrinkTitles strips whitespace that older clients stored around titles.
func trimDrinkTitles(db *gorm.DB) error {
	return db.Model(&drinks.Drink{}).
		Where("title <> TRIM(title)").
		Update("title", gorm.Expr("TRIM(title)")).Error
}
