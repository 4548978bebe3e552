package repository

import (
	"context"
	"testing"

	"fundwave/pkg/db/option"
	"fundwave/pkg/db/pagination"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID    string `gorm:"column:id;primaryKey"`
	Name  string `gorm:"column:name"`
	Count int64  `gorm:"column:count"`
}

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	repo := ProvideStore[widget](newDB(t))

	require.NoError(t, repo.Create(ctx, &widget{ID: "1", Name: "a", Count: 1}))
	require.NoError(t, repo.BatchCreate(ctx, []*widget{{ID: "2", Name: "b"}, {ID: "3", Name: "b"}}))

	got, err := repo.FindOne(ctx, &widget{ID: "1"})
	require.NoError(t, err)
	require.Equal(t, "a", got.Name)

	missing, err := repo.FindOne(ctx, &widget{ID: "404"})
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, repo.Update(ctx, "1", map[string]any{"count": 5}))
	got, err = repo.FindOne(ctx, &widget{ID: "1"})
	require.NoError(t, err)
	require.EqualValues(t, 5, got.Count)

	n, err := repo.Count(ctx, &widget{Name: "b"})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestStoreOptions(t *testing.T) {
	ctx := context.Background()
	repo := ProvideStore[widget](newDB(t))
	for _, w := range []*widget{{ID: "1", Count: 1}, {ID: "2", Count: 2}, {ID: "3", Count: 3}} {
		require.NoError(t, repo.Create(ctx, w))
	}

	list, err := repo.Find(ctx, &widget{}, option.ApplyOperator(option.Condition{
		Field: "count", Operator: option.GT, Value: 1,
	}), option.WithSortBy(option.QuerySortBy{SortBy: "count", OrderBy: "ASC"}))
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "2", list[0].ID)

	page, err := repo.Find(ctx, &widget{}, option.ApplyPagination(pagination.Pagination{Limit: 2}))
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, "3", page[0].ID)

	cursor, err := pagination.EncodeCursor(pagination.Cursor{ID: "2"})
	require.NoError(t, err)
	next, err := repo.Find(ctx, &widget{}, option.ApplyPagination(pagination.Pagination{Cursor: cursor, Limit: 2}))
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.Equal(t, "1", next[0].ID)
}

func TestWithTrxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	repo := ProvideStore[widget](db)

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, repo.WithTrx(tx).Create(ctx, &widget{ID: "1"}))
		return gorm.ErrInvalidTransaction
	})
	require.Error(t, err)

	got, err := repo.FindOne(ctx, &widget{ID: "1"})
	require.NoError(t, err)
	require.Nil(t, got)
}
