package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"product-user-services/internal/core/errs"
	"product-user-services/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserStore = (*UserRepo)(nil)

func (r *UserRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepo) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	var us []domain.User
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&us).Error; err != nil {
		return nil, err
	}
	return us, nil
}

func (r *UserRepo) Add(ctx context.Context, u *domain.User) error {
	if u.Version == 0 {
		u.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDupKey(err) {
			return errs.Invalid("email", "already taken")
		}
		return err
	}
	return nil
}

// Update 用户行与级联任务同一事务；新任务会把该用户之前未完成的任务置为 superseded
func (r *UserRepo) Update(ctx context.Context, u *domain.User, job *domain.CascadeJob) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.User{}).
			Where("id = ? AND version = ?", u.ID, u.Version).
			Updates(map[string]any{
				"name":            u.Name,
				"email":           u.Email,
				"role":            u.Role,
				"is_active":       u.IsActive,
				"email_confirmed": u.EmailConfirmed,
				"password_hash":   u.PasswordHash,
				"security_stamp":  u.SecurityStamp,
				"updated_at":      u.UpdatedAt,
				"version":         u.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.Conflict("user was modified concurrently")
		}
		if job == nil {
			return nil
		}
		if err := tx.Model(&domain.CascadeJob{}).
			Where("user_id = ? AND status = ?", job.UserID, domain.JobPending).
			Update("status", domain.JobSuperseded).Error; err != nil {
			return err
		}
		return tx.Create(job).Error
	})
	if err != nil {
		if isDupKey(err) {
			return errs.Invalid("email", "already taken")
		}
		return err
	}
	u.Version++
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{})
	return res.RowsAffected > 0, res.Error
}

func isDupKey(err error) bool {
	// 不依赖 gorm.ErrDuplicatedKey，避免各驱动翻译差异
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
