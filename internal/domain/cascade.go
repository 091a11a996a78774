package domain

import (
	"context"
	"time"
)

type CascadeAction string

const (
	CascadeSoftDelete CascadeAction = "soft_delete"
	CascadeRestore    CascadeAction = "restore"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobDone       JobStatus = "done"
	JobSuperseded JobStatus = "superseded"
)

// CascadeJob outbox 记录：用户激活状态变化后要对其商品执行的动作
type CascadeJob struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	UserID    string        `gorm:"size:36;not null;index" json:"userId"`
	Action    CascadeAction `gorm:"size:16;not null" json:"action"`
	ActorID   string        `gorm:"size:36" json:"actorId"`
	ActorRole string        `gorm:"size:16" json:"actorRole"`
	Status    JobStatus     `gorm:"size:16;not null;index" json:"status"`
	Attempts  int           `gorm:"not null;default:0" json:"attempts"`
	LastError string        `gorm:"size:500" json:"lastError,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (CascadeJob) TableName() string { return "cascade_jobs" }

type CascadeJobStore interface {
	Pending(ctx context.Context, limit int) ([]CascadeJob, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	// Get 不存在时返回 (nil, nil)
	Get(ctx context.Context, id string) (*CascadeJob, error)
	// Latest 用户最近一个未被 superseded 的任务
	Latest(ctx context.Context, userID string) (*CascadeJob, error)
}

// Transition 激活状态迁移表：只有真正的变化才产生动作
func Transition(wasActive, nowActive bool) (CascadeAction, bool) {
	switch {
	case wasActive && !nowActive:
		return CascadeSoftDelete, true
	case !wasActive && nowActive:
		return CascadeRestore, true
	default:
		return "", false
	}
}
