package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"product-user-services/internal/core/errs"
	"product-user-services/internal/domain"
)

type ProductRepo struct{ db *gorm.DB }

func NewProductRepo(db *gorm.DB) *ProductRepo { return &ProductRepo{db: db} }

var _ domain.ProductStore = (*ProductRepo)(nil)

// visible 默认查询过滤：软删记录对所有读都不可见
func (r *ProductRepo) visible(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("visibility = ?", domain.VisibilityActive)
}

func (r *ProductRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.visible(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	var ps []domain.Product
	if err := r.visible(ctx).Order("created_at DESC").Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

func (r *ProductRepo) Search(ctx context.Context, f domain.SearchFilter) ([]domain.Product, error) {
	q := r.visible(ctx)
	if f.Name != nil {
		if s := strings.TrimSpace(*f.Name); s != "" {
			q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
		}
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.Availability != nil {
		q = q.Where("availability = ?", *f.Availability)
	}
	var ps []domain.Product
	if err := q.Order("created_at DESC").Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

func (r *ProductRepo) Add(ctx context.Context, p *domain.Product) error {
	if p.Visibility == "" {
		p.Visibility = domain.VisibilityActive
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return r.db.WithContext(ctx).Create(p).Error
}

// Update 乐观锁：version 不匹配即并发冲突
func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	res := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"name":         p.Name,
			"description":  p.Description,
			"price":        p.Price,
			"availability": p.Availability,
			"visibility":   p.Visibility,
			"version":      p.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.Conflict("product was modified concurrently")
	}
	p.Version++
	return nil
}

// SoftDeleteByOwner 单条 UPDATE，整体原子；已软删的不再计入
func (r *ProductRepo) SoftDeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return r.flipOwner(ctx, ownerID, domain.VisibilityActive, domain.VisibilitySoftDeleted)
}

// RestoreByOwner 绕过默认过滤，只恢复当前软删的
func (r *ProductRepo) RestoreByOwner(ctx context.Context, ownerID string) (int64, error) {
	return r.flipOwner(ctx, ownerID, domain.VisibilitySoftDeleted, domain.VisibilityActive)
}

// flipOwner 同一事务里维护 owner_suspensions
func (r *ProductRepo) flipOwner(ctx context.Context, ownerID string, from, to domain.Visibility) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Product{}).
			Where("owner_id = ? AND visibility = ?", ownerID, from).
			Updates(map[string]any{
				"visibility": to,
				"version":    gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		if to == domain.VisibilitySoftDeleted {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&domain.OwnerSuspension{OwnerID: ownerID, SuspendedAt: time.Now().UTC()}).Error
		}
		return tx.Where("owner_id = ?", ownerID).Delete(&domain.OwnerSuspension{}).Error
	})
	return n, err
}

func (r *ProductRepo) OwnerSuspended(ctx context.Context, ownerID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.OwnerSuspension{}).
		Where("owner_id = ?", ownerID).
		Count(&n).Error
	return n > 0, err
}

func (r *ProductRepo) IDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("owner_id = ?", ownerID).
		Pluck("id", &ids).Error
	return ids, err
}
