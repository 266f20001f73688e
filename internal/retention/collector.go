package retention

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wwwzy/medfleet/internal/storage"
)

// Collector 周期性清理过期的审计记录。
type Collector struct {
	cfg Config

	store  *storage.Storage
	logger *zap.Logger
}

func NewCollector(store *storage.Storage, cfg Config, logger *zap.Logger) (*Collector, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{cfg: cfg.withDefaults(), store: store, logger: logger}, nil
}

func (c *Collector) Run(ctx context.Context) error {
	if c == nil || c.store == nil {
		return errors.New("retention collector not initialized")
	}

	if _, err := c.RunOnce(ctx, time.Now().UTC()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.RunOnce(ctx, time.Now().UTC()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}
	}
}

// RunOnce 执行一轮清理并返回删除的记录数。
func (c *Collector) RunOnce(ctx context.Context, now time.Time) (int64, error) {
	if c == nil || c.store == nil {
		return 0, errors.New("retention collector not initialized")
	}

	var deleted atomic.Int64
	var tasks []func(context.Context) error

	if c.cfg.KeepDays > 0 {
		cutoff := now.Add(-time.Duration(c.cfg.KeepDays) * 24 * time.Hour)
		tasks = append(tasks, func(ctx context.Context) error {
			n, err := c.deleteBefore(ctx, cutoff)
			deleted.Add(n)
			return err
		})
	}
	if c.cfg.KeepLatest > 0 {
		tasks = append(tasks, func(ctx context.Context) error {
			n, err := c.deleteBeyondLatest(ctx, c.cfg.KeepLatest)
			deleted.Add(n)
			return err
		})
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	workers := c.cfg.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan func(context.Context) error)
	errs := make(chan error, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
					errs <- err
				}
			}
		}()
	}

	for _, t := range tasks {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			close(errs)
			return deleted.Load(), ctx.Err()
		case jobs <- t:
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			c.cfg.OnError(err)
			c.logger.Warn("清理审计记录失败", zap.Error(err))
			return deleted.Load(), err
		}
	}

	if n := deleted.Load(); n > 0 {
		c.logger.Info("已清理审计记录", zap.Int64("deleted", n))
	}
	return deleted.Load(), nil
}

func (c *Collector) deleteBefore(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		affected, err := c.store.DeleteAuditRecordsBeforeLimited(ctx, before, c.cfg.BatchRows)
		if err != nil {
			return total, err
		}
		if affected == 0 {
			return total, nil
		}
		total += affected
		if err := c.sleepIdle(ctx); err != nil {
			return total, err
		}
	}
}

func (c *Collector) deleteBeyondLatest(ctx context.Context, keep int) (int64, error) {
	var total int64
	for {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		affected, err := c.store.DeleteAuditRecordsKeepLatestLimited(ctx, keep, c.cfg.BatchRows)
		if err != nil {
			return total, err
		}
		if affected == 0 {
			return total, nil
		}
		total += affected
		if err := c.sleepIdle(ctx); err != nil {
			return total, err
		}
	}
}

func (c *Collector) sleepIdle(ctx context.Context) error {
	if c.cfg.IdleSleep <= 0 {
		return nil
	}
	timer := time.NewTimer(c.cfg.IdleSleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
