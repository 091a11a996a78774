package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"product-user-services/internal/domain"
)

type CascadeJobRepo struct{ db *gorm.DB }

func NewCascadeJobRepo(db *gorm.DB) *CascadeJobRepo { return &CascadeJobRepo{db: db} }

var _ domain.CascadeJobStore = (*CascadeJobRepo)(nil)

// Pending 按创建时间先后
func (r *CascadeJobRepo) Pending(ctx context.Context, limit int) ([]domain.CascadeJob, error) {
	var jobs []domain.CascadeJob
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.JobPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// MarkDone 只推进 pending 的任务，已被 superseded 的保持不变
func (r *CascadeJobRepo) MarkDone(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.CascadeJob{}).
		Where("id = ? AND status = ?", id, domain.JobPending).
		Updates(map[string]any{
			"status":     domain.JobDone,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
		}).Error
}

func (r *CascadeJobRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	return r.db.WithContext(ctx).Model(&domain.CascadeJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}

func (r *CascadeJobRepo) Get(ctx context.Context, id string) (*domain.CascadeJob, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *CascadeJobRepo) Latest(ctx context.Context, userID string) (*domain.CascadeJob, error) {
	return r.first(r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, domain.JobSuperseded).
		Order("created_at DESC"))
}

func (r *CascadeJobRepo) first(q *gorm.DB) (*domain.CascadeJob, error) {
	var j domain.CascadeJob
	if err := q.First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}
