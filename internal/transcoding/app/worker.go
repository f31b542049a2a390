package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/internal/transcoding/repository"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkerPoolConfig worker pool setting
type WorkerPoolConfig struct {
	Concurrency  int
	ClaimTimeout time.Duration
	LockTTL      time.Duration
}

// WorkerPool claims queued jobs and runs at most Concurrency of them at a time
type WorkerPool struct {
	repo  repository.JobRepo
	coord *Coordinator
	cfg   WorkerPoolConfig

	mu      sync.Mutex
	running map[string]context.CancelCauseFunc
}

// NewWorkerPool create WorkerPool
func NewWorkerPool(repo repository.JobRepo, coord *Coordinator, cfg WorkerPoolConfig) *WorkerPool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &WorkerPool{
		repo:    repo,
		coord:   coord,
		cfg:     cfg,
		running: make(map[string]context.CancelCauseFunc),
	}
}

// Run blocks until ctx is cancelled and every in-flight job reached a terminal state
func (w *WorkerPool) Run(ctx context.Context) error {
	recovered, err := w.repo.RecoverStalled(ctx)
	if err != nil {
		logger.Log.Warn("recover stalled jobs failed", zap.Error(err))
	}
	if len(recovered) > 0 {
		logger.Log.Info("stalled jobs failed", zap.Strings("job_ids", recovered))
	}

	if err := w.repo.SubscribeCancel(ctx, w.cancelJob); err != nil {
		return err
	}

	logger.Log.Info("worker pool started", zap.Int("concurrency", w.cfg.Concurrency))
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		slot := i
		g.Go(func() error {
			return w.loop(gctx, slot)
		})
	}
	err = g.Wait()
	logger.Log.Info("worker pool stopped")
	return err
}

// Running number of jobs this pool is processing
func (w *WorkerPool) Running() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.running)
}

func (w *WorkerPool) loop(ctx context.Context, slot int) error {
	log := logger.Log.With(zap.Int("worker", slot))
	for {
		if ctx.Err() != nil {
			return nil
		}
		job, token, err := w.repo.Claim(ctx, w.cfg.ClaimTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("claim job failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, log, job, token)
	}
}

func (w *WorkerPool) process(ctx context.Context, log *logger.LogInfo, job *domain.Job, token string) {
	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	w.mu.Lock()
	w.running[job.ID] = cancel
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.running, job.ID)
		w.mu.Unlock()
	}()

	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.keepAlive(jobCtx, job.ID, token, cancel)
	}()

	log.Info("job claimed", zap.String("job_id", job.ID), zap.String("url", job.Data.URL))
	err := w.coord.Process(jobCtx, job)
	cancel(nil)
	wg.Wait()

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCancelledByUser):
		log.Info("job cancelled", zap.String("job_id", job.ID))
	default:
		log.Warn("job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// keepAlive renews the claim lock; a lost lock means the job was cancelled elsewhere
func (w *WorkerPool) keepAlive(ctx context.Context, id, token string, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(w.cfg.LockTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := w.repo.ExtendLock(ctx, id, token)
			if errors.Is(err, repository.ErrLockLost) {
				cancel(err)
				return
			}
			if err != nil && ctx.Err() == nil {
				logger.Log.Warn("extend job lock failed", zap.String("job_id", id), zap.Error(err))
			}
		}
	}
}

// cancelJob invoked for every cancel notification, ignores jobs owned by other processes
func (w *WorkerPool) cancelJob(id string) {
	w.mu.Lock()
	cancel, ok := w.running[id]
	w.mu.Unlock()
	if ok {
		logger.Log.Debug("cancel signal received", zap.String("job_id", id))
		cancel(domain.ErrCancelledByUser)
	}
}
