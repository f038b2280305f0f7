package drinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrMissingDatabase indicates the store was built without a database handle.
	ErrMissingDatabase = errors.New("drinks: database handle is required")
	// ErrDrinkNotFound indicates no drink exists with the requested id.
	ErrDrinkNotFound = errors.New("drinks: drink not found")
	// ErrDuplicateTitle indicates a write would violate title uniqueness.
	ErrDuplicateTitle = errors.New("drinks: title already exists")
	// ErrInvalidDrink indicates a drink failed validation before a write.
	ErrInvalidDrink = errors.New("drinks: invalid drink")

	noOpLogger = zap.NewNop()
)

// StoreError carries a stable code of the form drinks.<operation>.<reason>.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

const (
	opStoreNew = "drinks.store.new"
	opListAll  = "drinks.list_all"
	opInsert   = "drinks.insert"
	opFindByID = "drinks.find_by_id"
	opUpdate   = "drinks.update"
	opDelete   = "drinks.delete"
)

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: operation + "." + reason, err: cause}
}

type StoreConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Store persists drinks. Every call goes to the database; writes commit
// immediately.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newStoreError(opStoreNew, "missing_database", ErrMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, logger: logger}, nil
}

// ListAll returns every drink ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]Drink, error) {
	if s.db == nil {
		return nil, s.fail(opListAll, "missing_database", ErrMissingDatabase)
	}
	var drinks []Drink
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&drinks).Error; err != nil {
		return nil, s.fail(opListAll, "query_failed", err)
	}
	return drinks, nil
}

// Insert stores a new drink and returns it with its generated id.
func (s *Store) Insert(ctx context.Context, title string, recipe Recipe) (Drink, error) {
	if s.db == nil {
		return Drink{}, s.fail(opInsert, "missing_database", ErrMissingDatabase)
	}
	drink := NewDrink(title, recipe)
	if err := drink.Validate(); err != nil {
		return Drink{}, newStoreError(opInsert, "invalid_drink", err)
	}

	db := s.db.WithContext(ctx)
	taken, err := titleTaken(db, drink.Title, 0)
	if err != nil {
		return Drink{}, s.fail(opInsert, "title_lookup_failed", err)
	}
	if taken {
		return Drink{}, newStoreError(opInsert, "duplicate_title", ErrDuplicateTitle)
	}

	if err := db.Create(&drink).Error; err != nil {
		if isUniqueViolation(err) {
			return Drink{}, newStoreError(opInsert, "duplicate_title", fmt.Errorf("%w: %v", ErrDuplicateTitle, err))
		}
		return Drink{}, s.fail(opInsert, "create_failed", err, zap.String("title", drink.Title))
	}
	return drink, nil
}

// FindByID loads a single drink or returns ErrDrinkNotFound.
func (s *Store) FindByID(ctx context.Context, id uint) (Drink, error) {
	if s.db == nil {
		return Drink{}, s.fail(opFindByID, "missing_database", ErrMissingDatabase)
	}
	var drink Drink
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&drink).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Drink{}, newStoreError(opFindByID, "not_found", ErrDrinkNotFound)
	}
	if err != nil {
		return Drink{}, s.fail(opFindByID, "query_failed", err, zap.Uint("drink_id", id))
	}
	return drink, nil
}

// Update persists the title and recipe of an existing drink.
func (s *Store) Update(ctx context.Context, drink Drink) (Drink, error) {
	if s.db == nil {
		return Drink{}, s.fail(opUpdate, "missing_database", ErrMissingDatabase)
	}
	if err := drink.Validate(); err != nil {
		return Drink{}, newStoreError(opUpdate, "invalid_drink", err)
	}

	db := s.db.WithContext(ctx)
	taken, err := titleTaken(db, drink.Title, drink.ID)
	if err != nil {
		return Drink{}, s.fail(opUpdate, "title_lookup_failed", err, zap.Uint("drink_id", drink.ID))
	}
	if taken {
		return Drink{}, newStoreError(opUpdate, "duplicate_title", ErrDuplicateTitle)
	}

	result := db.Model(&Drink{}).
		Where("id = ?", drink.ID).
		Updates(map[string]interface{}{
			"title":  drink.Title,
			"recipe": drink.Recipe,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return Drink{}, newStoreError(opUpdate, "duplicate_title", fmt.Errorf("%w: %v", ErrDuplicateTitle, result.Error))
		}
		return Drink{}, s.fail(opUpdate, "update_failed", result.Error, zap.Uint("drink_id", drink.ID))
	}
	if result.RowsAffected == 0 {
		return Drink{}, newStoreError(opUpdate, "not_found", ErrDrinkNotFound)
	}
	return drink, nil
}

// Delete removes a drink permanently.
func (s *Store) Delete(ctx context.Context, id uint) error {
	if s.db == nil {
		return s.fail(opDelete, "missing_database", ErrMissingDatabase)
	}
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Drink{})
	if result.Error != nil {
		return s.fail(opDelete, "delete_failed", result.Error, zap.Uint("drink_id", id))
	}
	if result.RowsAffected == 0 {
		return newStoreError(opDelete, "not_found", ErrDrinkNotFound)
	}
	return nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrMissingDatabase
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func titleTaken(db *gorm.DB, title string, exceptID uint) (bool, error) {
	var count int64
	query := db.Model(&Drink{}).Where("title = ?", title)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") || strings.Contains(message, "duplicate key")
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) fail(operation, reason string, err error, fields ...zap.Field) error {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("drinks store error", attrs...)
	return newStoreError(operation, reason, err)
}
