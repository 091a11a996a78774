package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"product-user-services/internal/core/metrics"
	"product-user-services/internal/domain"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.CascadeJob) error
}

type Options struct {
	Interval    time.Duration
	BatchSize   int
	Parallelism int
}

// CascadeWorker 周期性重放仍为 pending 的级联任务
type CascadeWorker struct {
	jobs       domain.CascadeJobStore
	dispatcher Dispatcher
	opts       Options
	log        *zap.Logger
}

func NewCascadeWorker(jobs domain.CascadeJobStore, d Dispatcher, opts Options, l *zap.Logger) *CascadeWorker {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	return &CascadeWorker{jobs: jobs, dispatcher: d, opts: opts, log: l}
}

// Run 阻塞直到 ctx 结束
func (w *CascadeWorker) Run(ctx context.Context) {
	t := time.NewTicker(w.opts.Interval)
	defer t.Stop()
	w.log.Info("cascade worker started", zap.Duration("interval", w.opts.Interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("cascade worker stopped")
			return
		case <-t.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Warn("cascade worker pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce 同一用户的任务按创建顺序串行，不同用户之间并行；返回成功条数
func (w *CascadeWorker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.jobs.Pending(ctx, w.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	metrics.CascadePending.Set(float64(len(jobs)))
	if len(jobs) == 0 {
		return 0, nil
	}

	order := make([]string, 0, len(jobs))
	byUser := make(map[string][]domain.CascadeJob, len(jobs))
	for _, j := range jobs {
		if _, ok := byUser[j.UserID]; !ok {
			order = append(order, j.UserID)
		}
		byUser[j.UserID] = append(byUser[j.UserID], j)
	}

	done := make([]int, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Parallelism)
	for i, uid := range order {
		queue := byUser[uid]
		g.Go(func() error {
			for k := range queue {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// 失败已记录在任务上，下一轮再试
				if err := w.dispatcher.Dispatch(gctx, &queue[k]); err != nil {
					return nil
				}
				done[i]++
			}
			return nil
		})
	}
	err = g.Wait()

	n := 0
	for _, d := range done {
		n += d
	}
	w.log.Info("cascade worker pass",
		zap.Int("pending", len(jobs)),
		zap.Int("users", len(order)),
		zap.Int("succeeded", n),
	)
	return n, err
}
