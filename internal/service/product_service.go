package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/core/errs"
	"product-user-services/internal/core/metrics"
	"product-user-services/internal/core/validate"
	"product-user-services/internal/domain"
	"product-user-services/pkg/utils"
)

type CreateProductInput struct {
	Name         string  `json:"name"         binding:"required,min=2,max=100"`
	Description  string  `json:"description"  binding:"required,min=10,max=500"`
	Price        float64 `json:"price"        binding:"gt=0"`
	Availability *bool   `json:"availability" binding:"required"`
}

type UpdateProductInput struct {
	ID           string  `json:"id"           binding:"required,uuid"`
	Name         string  `json:"name"         binding:"required,min=2,max=100"`
	Description  string  `json:"description"  binding:"required,min=10,max=500"`
	Price        float64 `json:"price"        binding:"gt=0"`
	Availability *bool   `json:"availability" binding:"required"`
}

type SearchProductsInput struct {
	Name         *string  `form:"name"         json:"name"`
	MinPrice     *float64 `form:"minPrice"     json:"minPrice"     binding:"omitempty,gte=0"`
	MaxPrice     *float64 `form:"maxPrice"     json:"maxPrice"     binding:"omitempty,gte=0"`
	Availability *bool    `form:"availability" json:"availability"`
}

type ProductService struct {
	store domain.ProductStore
	log   *zap.Logger
	now   func() time.Time
}

func NewProductService(store domain.ProductStore, l *zap.Logger) *ProductService {
	return &ProductService{store: store, log: l, now: func() time.Time { return time.Now().UTC() }}
}

func (s *ProductService) Create(ctx context.Context, in CreateProductInput, ownerID string) (*domain.Product, error) {
	if ownerID == "" {
		return nil, errs.Unauthorized("missing caller identity")
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	// 已停用用户的令牌在过期前仍有效，这里按商品侧记录拦截
	suspended, err := s.store.OwnerSuspended(ctx, ownerID)
	if err != nil {
		return nil, errs.Internal("load owner state failed", err)
	}
	if suspended {
		return nil, errs.Forbidden("owner account is deactivated")
	}
	p := &domain.Product{
		ID:           utils.NewID(),
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Price:        in.Price,
		Availability: *in.Availability,
		OwnerID:      ownerID,
		CreatedAt:    s.now(),
		Visibility:   domain.VisibilityActive,
		Version:      1,
	}
	if err := s.store.Add(ctx, p); err != nil {
		return nil, errs.Internal("create product failed", err)
	}
	return p, nil
}

// Update 不存在 / 已软删 / 非 owner 一律 NotFound，不泄露他人资源是否存在
func (s *ProductService) Update(ctx context.Context, in UpdateProductInput, ownerID string) (*domain.Product, error) {
	if ownerID == "" {
		return nil, errs.Unauthorized("missing caller identity")
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	p, err := s.mutable(ctx, in.ID, ownerID)
	if err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Description = strings.TrimSpace(in.Description)
	p.Price = in.Price
	p.Availability = *in.Availability
	if err := s.store.Update(ctx, p); err != nil {
		return nil, storeErr("update product failed", err)
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id, ownerID string) error {
	if ownerID == "" {
		return errs.Unauthorized("missing caller identity")
	}
	p, err := s.mutable(ctx, id, ownerID)
	if err != nil {
		return err
	}
	p.Visibility = domain.VisibilitySoftDeleted
	if err := s.store.Update(ctx, p); err != nil {
		return storeErr("delete product failed", err)
	}
	return nil
}

func (s *ProductService) mutable(ctx context.Context, id, ownerID string) (*domain.Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, errs.Internal("load product failed", err)
	}
	if !CanMutate(auth.Actor{ID: ownerID}, p) {
		return nil, errs.NotFound("product not found")
	}
	return p, nil
}

func (s *ProductService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, errs.Internal("load product failed", err)
	}
	if p == nil || p.IsDeleted() {
		return nil, errs.NotFound("product not found")
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	ps, err := s.store.List(ctx)
	if err != nil {
		return nil, errs.Internal("list products failed", err)
	}
	return ps, nil
}

func (s *ProductService) Search(ctx context.Context, in SearchProductsInput) ([]domain.Product, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return nil, errs.Invalid("minPrice", "must not exceed maxPrice")
	}
	ps, err := s.store.Search(ctx, domain.SearchFilter{
		Name:         in.Name,
		MinPrice:     in.MinPrice,
		MaxPrice:     in.MaxPrice,
		Availability: in.Availability,
	})
	if err != nil {
		return nil, errs.Internal("search products failed", err)
	}
	return ps, nil
}

// SoftDeleteByOwner 级联入口，幂等
func (s *ProductService) SoftDeleteByOwner(ctx context.Context, actor auth.Actor, ownerID string) (int64, error) {
	return s.bulk(ctx, actor, ownerID, domain.CascadeSoftDelete, s.store.SoftDeleteByOwner)
}

func (s *ProductService) RestoreByOwner(ctx context.Context, actor auth.Actor, ownerID string) (int64, error) {
	return s.bulk(ctx, actor, ownerID, domain.CascadeRestore, s.store.RestoreByOwner)
}

func (s *ProductService) bulk(ctx context.Context, actor auth.Actor, ownerID string, action domain.CascadeAction,
	op func(context.Context, string) (int64, error)) (int64, error) {
	if !CanManageOwnerProducts(actor) {
		return 0, errs.Forbidden("admin role required")
	}
	if !utils.IsID(ownerID) {
		return 0, errs.Invalid("userId", "must be a uuid")
	}
	n, err := op(ctx, ownerID)
	if err != nil {
		return 0, errs.Internal("bulk "+string(action)+" failed", err)
	}
	metrics.ProductsFlipped.WithLabelValues(string(action)).Add(float64(n))
	s.log.Info("owner products updated",
		zap.String("action", string(action)),
		zap.String("owner_id", ownerID),
		zap.String("actor_id", actor.ID),
		zap.Int64("affected", n),
	)
	return n, nil
}

// storeErr 保留 store 返回的业务错误（如 Conflict），其余包成 Internal
func storeErr(msg string, err error) error {
	if _, ok := errs.As(err); ok {
		return err
	}
	return errs.Internal(msg, err)
}
