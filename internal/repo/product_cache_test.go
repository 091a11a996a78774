package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"product-user-services/internal/core/cache"
)

func newCachedStore(t *testing.T) (*CachedProductStore, *ProductRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	inner := NewProductRepo(newTestDB(t))
	return NewCachedProductStore(inner, c, time.Minute, zap.NewNop()), inner, mr
}

func TestCachedProductStore_GetPopulatesCache(t *testing.T) {
	s, inner, mr := newCachedStore(t)
	ctx := context.Background()
	p := addProduct(t, inner, "o", "Widget", 5, true)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, mr.Exists(productKey(p.ID)))

	got.Name = "Widget 2"
	require.NoError(t, s.Update(ctx, got))
	assert.False(t, mr.Exists(productKey(p.ID)))

	again, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget 2", again.Name)
}

func TestCachedProductStore_BulkEvictsOwnerKeys(t *testing.T) {
	s, inner, mr := newCachedStore(t)
	ctx := context.Background()
	p1 := addProduct(t, inner, "o", "P1", 1, true)
	p2 := addProduct(t, inner, "o", "P2", 2, true)
	for _, id := range []string{p1.ID, p2.ID} {
		_, err := s.Get(ctx, id)
		require.NoError(t, err)
	}

	n, err := s.SoftDeleteByOwner(ctx, "o")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.False(t, mr.Exists(productKey(p1.ID)))
	assert.False(t, mr.Exists(productKey(p2.ID)))

	got, err := s.Get(ctx, p1.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.RestoreByOwner(ctx, "o")
	require.NoError(t, err)
	got, err = s.Get(ctx, p1.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "P1", got.Name)
}

func TestCachedProductStore_AddEvictsCachedMiss(t *testing.T) {
	s, _, _ := newCachedStore(t)
	ctx := context.Background()
	p := addProduct(t, s.ProductStore.(*ProductRepo), "o", "Lamp", 3, true)

	// 先缓存一次 miss（null），再通过装饰器写入
	_, err := s.Get(ctx, "not-yet")
	require.NoError(t, err)
	p2 := *p
	p2.ID = "not-yet"
	require.NoError(t, s.Add(ctx, &p2))

	got, err := s.Get(ctx, "not-yet")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Lamp", got.Name)
}
