package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsTrimsDrinkTitles(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&drinks.Drink{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := drinks.NewDrink("placeholder", drinks.Recipe{{Name: "water", Color: "blue", Parts: 1}})
	legacy.Title = "  Latte "
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert drink: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored drinks.Drink
	if err := database.Where("id = ?", legacy.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload drink: %v", err)
	}
	if stored.Title != "Latte" {
		testContext.Fatalf("expected title to be trimmed, got %q", stored.Title)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationTrimDrinkTitles).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to re-apply migrations: %v", err)
	}
	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count migration records: %v", err)
	}
	if count != int64(len(registeredMigrations)) {
		testContext.Fatalf("expected each migration to be recorded once, got %d records", count)
	}
}

func TestOpenResetSeedsWater(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "reset.db")

	database, err := Open(Options{Driver: "sqlite", Path: databasePath}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	extra := drinks.NewDrink("Latte", drinks.Recipe{{Name: "milk", Color: "white", Parts: 2}})
	if err := database.Create(&extra).Error; err != nil {
		testContext.Fatalf("failed to insert drink: %v", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}

	database, err = Open(Options{Driver: "sqlite", Path: databasePath, Reset: true}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to reopen database: %v", err)
	}
	var stored []drinks.Drink
	if err := database.Order("id ASC").Find(&stored).Error; err != nil {
		testContext.Fatalf("failed to list drinks: %v", err)
	}
	if len(stored) != 1 || stored[0].Title != "water" {
		testContext.Fatalf("expected only the seed drink after reset, got %#v", stored)
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Options{Driver: "oracle"}, nil); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(Options{Driver: "postgres"}, nil); err == nil {
		testContext.Fatalf("expected missing dsn error")
	}
}
