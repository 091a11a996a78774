package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Visibility 商品可见状态；软删不是删除行
type Visibility string

const (
	VisibilityActive      Visibility = "active"
	VisibilitySoftDeleted Visibility = "soft_deleted"
)

type Product struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	Description  string     `gorm:"size:500" json:"description"`
	Price        float64    `gorm:"type:decimal(12,2);not null" json:"price"`
	Availability bool       `gorm:"not null;index" json:"availability"`
	OwnerID      string     `gorm:"size:36;not null;index" json:"ownerId"`
	CreatedAt    time.Time  `gorm:"not null" json:"createdAt"`
	Visibility   Visibility `gorm:"size:16;not null;default:active;index" json:"visibility"`
	Version      int64      `gorm:"not null;default:1" json:"version"`
}

func (Product) TableName() string { return "products" }

func (p *Product) IsDeleted() bool { return p.Visibility == VisibilitySoftDeleted }

// MarshalJSON 额外输出 isDeleted，读取时忽略
func (p Product) MarshalJSON() ([]byte, error) {
	type row Product
	return json.Marshal(struct {
		row
		IsDeleted bool `json:"isDeleted"`
	}{row(p), p.IsDeleted()})
}

// OwnerSuspension 级联软删时写入、恢复时删除；存在期间该 owner 不能再创建商品
type OwnerSuspension struct {
	OwnerID     string    `gorm:"primaryKey;size:36"`
	SuspendedAt time.Time `gorm:"not null"`
}

func (OwnerSuspension) TableName() string { return "owner_suspensions" }

// SearchFilter 各条件 AND 组合，nil 表示不过滤
type SearchFilter struct {
	Name         *string
	MinPrice     *float64
	MaxPrice     *float64
	Availability *bool
}

// ProductStore 默认读只返回 active
type ProductStore interface {
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	Search(ctx context.Context, f SearchFilter) ([]Product, error)
	Add(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	SoftDeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	RestoreByOwner(ctx context.Context, ownerID string) (int64, error)
	IDsByOwner(ctx context.Context, ownerID string) ([]string, error)
	OwnerSuspended(ctx context.Context, ownerID string) (bool, error)
}
