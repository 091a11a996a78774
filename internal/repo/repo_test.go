package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"product-user-services/internal/core/database"
	"product-user-services/internal/domain"
	"product-user-services/pkg/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, MigrateProducts(db))
	require.NoError(t, MigrateUsers(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func addProduct(t *testing.T, r *ProductRepo, owner, name string, price float64, avail bool) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:           utils.NewID(),
		Name:         name,
		Description:  name + " description",
		Price:        price,
		Availability: avail,
		OwnerID:      owner,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, r.Add(context.Background(), p))
	return p
}

func ptr[T any](v T) *T { return &v }
