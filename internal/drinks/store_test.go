package drinks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "drinks.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Drink{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := NewStore(StoreConfig{Database: db, Logger: zap.NewNop()})
	require.NoError(t, err)
	return store, db
}

func TestNewStoreRequiresDatabase(t *testing.T) {
	_, err := NewStore(StoreConfig{})
	assert.ErrorIs(t, err, ErrMissingDatabase)

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "drinks.store.new.missing_database", storeErr.Code())
}

func TestStoreInsertAndList(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	latte, err := store.Insert(ctx, "Latte", sampleRecipe())
	require.NoError(t, err)
	assert.NotZero(t, latte.ID)

	water, err := store.Insert(ctx, "Water", Recipe{{Name: "water", Color: "blue", Parts: 1}})
	require.NoError(t, err)
	assert.Greater(t, water.ID, latte.ID)

	drinks, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, drinks, 2)
	assert.Equal(t, "Latte", drinks[0].Title)
	assert.Equal(t, sampleRecipe(), drinks[0].Ingredients())
	assert.Equal(t, "Water", drinks[1].Title)
}

func TestStoreInsertRejectsDuplicateTitle(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "Latte", sampleRecipe())
	require.NoError(t, err)

	_, err = store.Insert(ctx, "Latte", Recipe{})
	assert.ErrorIs(t, err, ErrDuplicateTitle)

	var count int64
	require.NoError(t, db.Model(&Drink{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUniqueIndexBacksTitleCheck(t *testing.T) {
	_, db := newTestStore(t)

	first := NewDrink("Latte", sampleRecipe())
	require.NoError(t, db.Create(&first).Error)
	second := NewDrink("Latte", sampleRecipe())
	err := db.Create(&second).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "expected unique violation, got %v", err)
}

func TestStoreInsertValidates(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Insert(context.Background(), "", sampleRecipe())
	assert.ErrorIs(t, err, ErrInvalidDrink)

	_, err = store.Insert(context.Background(), "Latte", nil)
	assert.ErrorIs(t, err, ErrInvalidDrink)
}

func TestStoreFindByID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.Insert(ctx, "Latte", sampleRecipe())
	require.NoError(t, err)

	found, err := store.FindByID(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, inserted.Title, found.Title)
	assert.Equal(t, sampleRecipe(), found.Ingredients())

	_, err = store.FindByID(ctx, 999999)
	assert.ErrorIs(t, err, ErrDrinkNotFound)
}

func TestStoreUpdateTitleKeepsRecipe(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.Insert(ctx, "Latte", sampleRecipe())
	require.NoError(t, err)

	title := "Flat White"
	inserted.Apply(Patch{Title: &title})
	_, err = store.Update(ctx, inserted)
	require.NoError(t, err)

	reloaded, err := store.FindByID(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, "Flat White", reloaded.Title)
	assert.Equal(t, sampleRecipe(), reloaded.Ingredients())
}

func TestStoreUpdateRejectsTakenTitle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "Latte", sampleRecipe())
	require.NoError(t, err)
	mocha, err := store.Insert(ctx, "Mocha", sampleRecipe())
	require.NoError(t, err)

	title := "Latte"
	mocha.Apply(Patch{Title: &title})
	_, err = store.Update(ctx, mocha)
	assert.ErrorIs(t, err, ErrDuplicateTitle)

	unchanged, err := store.FindByID(ctx, mocha.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mocha", unchanged.Title)
}

func TestStoreUpdateUnknownDrink(t *testing.T) {
	store, _ := newTestStore(t)
	drink := NewDrink("Ghost", sampleRecipe())
	drink.ID = 42

	_, err := store.Update(context.Background(), drink)
	assert.ErrorIs(t, err, ErrDrinkNotFound)
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.Insert(ctx, "Latte", sampleRecipe())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, inserted.ID))
	_, err = store.FindByID(ctx, inserted.ID)
	assert.ErrorIs(t, err, ErrDrinkNotFound)

	assert.ErrorIs(t, store.Delete(ctx, inserted.ID), ErrDrinkNotFound)
}

func TestZeroValueStoreReportsMissingDatabase(t *testing.T) {
	store := &Store{}
	ctx := context.Background()

	_, err := store.ListAll(ctx)
	assert.ErrorIs(t, err, ErrMissingDatabase)
	_, err = store.Insert(ctx, "Latte", sampleRecipe())
	assert.ErrorIs(t, err, ErrMissingDatabase)
	assert.ErrorIs(t, store.Ping(ctx), ErrMissingDatabase)
}
