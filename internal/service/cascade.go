package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/core/errs"
	"product-user-services/internal/core/metrics"
	"product-user-services/internal/domain"
	"product-user-services/internal/retry"
)

// Cascader 商品侧按 owner 批量软删 / 恢复
type Cascader interface {
	SoftDeleteByOwner(ctx context.Context, userID string) error
	RestoreByOwner(ctx context.Context, userID string) error
}

const bookkeepingTimeout = 5 * time.Second

type DispatcherOptions struct {
	Attempts  int
	BaseDelay time.Duration
	Timeout   time.Duration
}

// CascadeDispatcher 执行 outbox 中的级联任务：有限次重试，结果回写任务状态
type CascadeDispatcher struct {
	cascader Cascader
	jobs     domain.CascadeJobStore
	opts     DispatcherOptions
	log      *zap.Logger
}

func NewCascadeDispatcher(c Cascader, jobs domain.CascadeJobStore, opts DispatcherOptions, l *zap.Logger) *CascadeDispatcher {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &CascadeDispatcher{cascader: c, jobs: jobs, opts: opts, log: l}
}

// errStale 任务已不是 pending（被更新的状态迁移取代或已完成）
var errStale = errors.New("cascade job no longer pending")

// Dispatch 与请求的取消解耦：请求超时也要完整尝试一次。
// 每次尝试前重新读取任务，非 pending 直接跳过，避免旧任务覆盖更新的状态迁移
func (d *CascadeDispatcher) Dispatch(ctx context.Context, job *domain.CascadeJob) error {
	base := context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(base, d.opts.Timeout)
	defer cancel()
	if _, ok := auth.ActorFrom(ctx); !ok && job.ActorID != "" {
		ctx = auth.WithActor(ctx, auth.Actor{ID: job.ActorID, Role: job.ActorRole})
	}

	log := d.log.With(
		zap.String("job_id", job.ID),
		zap.String("user_id", job.UserID),
		zap.String("action", string(job.Action)),
	)

	err := retry.Do(ctx, d.opts.Attempts, d.opts.BaseDelay, func(ctx context.Context) error {
		cur, err := d.jobs.Get(ctx, job.ID)
		if err != nil {
			return err
		}
		if cur == nil || cur.Status != domain.JobPending {
			return retry.Permanent(errStale)
		}
		return d.run(ctx, job)
	})

	// 结果回写不受 dispatch 超时影响
	bctx, bcancel := context.WithTimeout(base, bookkeepingTimeout)
	defer bcancel()

	switch {
	case errors.Is(err, errStale):
		metrics.CascadeTotal.WithLabelValues(string(job.Action), "skipped").Inc()
		log.Info("cascade job no longer pending, skipped")
		return nil
	case err != nil:
		metrics.CascadeTotal.WithLabelValues(string(job.Action), "failed").Inc()
		log.Warn("cascade dispatch failed", zap.Error(err))
		if e := d.jobs.MarkFailed(bctx, job.ID, err.Error()); e != nil {
			log.Error("record cascade failure", zap.Error(e))
		}
		return errs.Cascade(fmt.Sprintf("product %s for user %s not applied", job.Action, job.UserID), err)
	}

	metrics.CascadeTotal.WithLabelValues(string(job.Action), "ok").Inc()
	log.Info("cascade dispatched")
	if e := d.jobs.MarkDone(bctx, job.ID); e != nil {
		// 任务已生效，标记失败只会导致一次幂等重放
		log.Error("mark cascade job done", zap.Error(e))
	}
	return d.reconcile(ctx, job, log)
}

// reconcile 执行期间任务被取代，且较新的任务已先完成时，旧动作会覆盖它；重放最新任务的动作
func (d *CascadeDispatcher) reconcile(ctx context.Context, job *domain.CascadeJob, log *zap.Logger) error {
	cur, err := d.jobs.Get(ctx, job.ID)
	if err != nil || cur == nil || cur.Status != domain.JobSuperseded {
		return nil
	}
	latest, err := d.jobs.Latest(ctx, job.UserID)
	if err != nil || latest == nil || latest.Status != domain.JobDone || latest.Action == job.Action {
		// 仍 pending 的新任务会自己执行
		return nil
	}
	log.Warn("cascade job superseded mid-flight, replaying latest action", zap.String("latest_job_id", latest.ID))
	err = retry.Do(ctx, d.opts.Attempts, d.opts.BaseDelay, func(ctx context.Context) error {
		return d.run(ctx, latest)
	})
	if err != nil {
		return errs.Cascade(fmt.Sprintf("product %s for user %s not re-applied", latest.Action, job.UserID), err)
	}
	return nil
}

func (d *CascadeDispatcher) run(ctx context.Context, job *domain.CascadeJob) error {
	switch job.Action {
	case domain.CascadeSoftDelete:
		return d.cascader.SoftDeleteByOwner(ctx, job.UserID)
	case domain.CascadeRestore:
		return d.cascader.RestoreByOwner(ctx, job.UserID)
	default:
		return retry.Permanent(fmt.Errorf("unknown cascade action %q", job.Action))
	}
}
