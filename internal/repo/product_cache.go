package repo

import (
	"context"
	"time"

	"go.uber.org/zap"

	"product-user-services/internal/core/cache"
	"product-user-services/internal/domain"
)

// CachedProductStore Get 走 Redis 读穿透，所有写操作失效对应 key
type CachedProductStore struct {
	domain.ProductStore
	cache *cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

var _ domain.ProductStore = (*CachedProductStore)(nil)

func NewCachedProductStore(inner domain.ProductStore, c *cache.Cache, ttl time.Duration, l *zap.Logger) *CachedProductStore {
	return &CachedProductStore{ProductStore: inner, cache: c, ttl: ttl, log: l}
}

func productKey(id string) string { return "product:" + id }

func (s *CachedProductStore) Get(ctx context.Context, id string) (*domain.Product, error) {
	return cache.GetOrLoadJSON(s.cache, ctx, productKey(id), s.ttl, func(ctx context.Context) (*domain.Product, error) {
		return s.ProductStore.Get(ctx, id)
	})
}

func (s *CachedProductStore) Add(ctx context.Context, p *domain.Product) error {
	if err := s.ProductStore.Add(ctx, p); err != nil {
		return err
	}
	s.evict(ctx, p.ID)
	return nil
}

func (s *CachedProductStore) Update(ctx context.Context, p *domain.Product) error {
	err := s.ProductStore.Update(ctx, p)
	s.evict(ctx, p.ID)
	return err
}

func (s *CachedProductStore) SoftDeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return s.bulk(ctx, ownerID, s.ProductStore.SoftDeleteByOwner)
}

func (s *CachedProductStore) RestoreByOwner(ctx context.Context, ownerID string) (int64, error) {
	return s.bulk(ctx, ownerID, s.ProductStore.RestoreByOwner)
}

func (s *CachedProductStore) bulk(ctx context.Context, ownerID string, op func(context.Context, string) (int64, error)) (int64, error) {
	ids, err := s.ProductStore.IDsByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	n, err := op(ctx, ownerID)
	s.evict(ctx, ids...)
	return n, err
}

func (s *CachedProductStore) evict(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.log.Warn("product cache evict failed", zap.Int("keys", len(keys)), zap.Error(err))
	}
}
