package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/config"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Options selects the backing database.
type Options struct {
	Driver string
	Path   string
	DSN    string
	Reset  bool
}

// Open establishes the configured connection and performs schema migrations.
// With Reset set, the drinks table is dropped, recreated and seeded.
func Open(options Options, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := newDialector(options)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if options.Driver != config.DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if options.Reset {
		if err := ResetDrinks(db); err != nil {
			return nil, err
		}
		logger.Warn("drinks table reset")
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", options.Driver))

	return db, nil
}

// Migrate creates missing tables and applies pending data migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&drinks.Drink{}, &migrationRecord{}); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

// ResetDrinks drops and recreates the drinks table, leaving a single seed drink.
func ResetDrinks(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&drinks.Drink{}); err != nil {
		return err
	}
	if err := db.AutoMigrate(&drinks.Drink{}); err != nil {
		return err
	}
	seed := drinks.NewDrink("water", drinks.Recipe{{Name: "water", Color: "blue", Parts: 1}})
	return db.Create(&seed).Error
}

func newDialector(options Options) (gorm.Dialector, error) {
	switch options.Driver {
	case config.DriverSQLite, "":
		if options.Path == "" {
			return nil, fmt.Errorf("database path is required")
		}
		return sqlite.Open(options.Path), nil
	case config.DriverPostgres:
		if options.DSN == "" {
			return nil, fmt.Errorf("database dsn is required")
		}
		return postgres.Open(options.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", options.Driver)
	}
}
