package domain

import (
	"context"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	Email          string     `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Name           string     `gorm:"size:64;not null" json:"name"`
	PasswordHash   string     `gorm:"size:100;not null" json:"-"`
	Role           string     `gorm:"size:16;not null;default:user" json:"role"`
	IsActive       bool       `gorm:"not null" json:"isActive"`
	EmailConfirmed bool       `gorm:"not null;default:false" json:"emailConfirmed"`
	SecurityStamp  string     `gorm:"size:36" json:"-"`
	Version        int64      `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt      *time.Time `gorm:"autoUpdateTime:false" json:"updatedAt,omitempty"`
}

func (User) TableName() string { return "users" }

// UserStore 查不到时返回 (nil, nil)
type UserStore interface {
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Add(ctx context.Context, u *User) error
	// Update 与级联任务同一事务落库；job 为 nil 时只写用户
	Update(ctx context.Context, u *User, job *CascadeJob) error
	Delete(ctx context.Context, id string) (bool, error)
}
