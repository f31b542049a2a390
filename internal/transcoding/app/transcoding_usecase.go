package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/internal/transcoding/repository"
	"transcoding_service/internal/transcoding/storage"
	"transcoding_service/pkg"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"

	"go.uber.org/zap"
)

// TranscodingUseCase 對外提供的 job 查詢 / 控制服務
type TranscodingUseCase interface {
	Submit(ctx context.Context, data domain.JobData) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, q domain.ListQuery) ([]domain.Job, error)
	Logs(ctx context.Context, id string, start, end int64) (*domain.JobLogs, error)
	Counts(ctx context.Context) (map[domain.JobState]int64, error)
	Metrics(ctx context.Context) (map[string]string, error)
	Cancel(ctx context.Context, id string) (*domain.Job, error)
	Delete(ctx context.Context, id string) (*domain.Job, error)
	Clean(ctx context.Context, states []domain.JobState, grace time.Duration, limit int64) ([]string, error)
}

type transcodingUseCase struct {
	JobRepo     repository.JobRepo
	MetricsRepo repository.MetricsRepo
	Storage     *storage.Storage
	Mirror      storage.Mirror
	Notifier    Notifier
}

// NewTranscodingUseCase 建立 TranscodingUseCase
func NewTranscodingUseCase(jobRepo repository.JobRepo,
	metricsRepo repository.MetricsRepo,
	store *storage.Storage,
	mirror storage.Mirror,
	notifier Notifier,
) TranscodingUseCase {
	if mirror == nil {
		mirror = storage.NewNoopMirror()
	}
	if notifier == nil {
		notifier = NewNoopNotifier()
	}
	return &transcodingUseCase{
		JobRepo:     jobRepo,
		MetricsRepo: metricsRepo,
		Storage:     store,
		Mirror:      mirror,
		Notifier:    notifier,
	}
}

// Submit 驗證 url 與輸出檔是否已存在後建立 job
func (u *transcodingUseCase) Submit(ctx context.Context, data domain.JobData) (*domain.Job, error) {
	data.URL = strings.TrimSpace(data.URL)
	if data.URL == "" {
		return nil, &domain.InputError{Message: "Failed to create job. Invalid URL param"}
	}
	name, err := u.Storage.OutputName(data.URL)
	if err != nil {
		return nil, err
	}
	exists, err := u.Storage.OutputExists(data.URL)
	if err != nil {
		return nil, fmt.Errorf("check output %s: %w", name, err)
	}
	if exists {
		return nil, &domain.InputError{Message: fmt.Sprintf("output %s", name), Err: domain.ErrAlreadyExists}
	}

	job, err := u.JobRepo.Enqueue(ctx, data)
	if err != nil {
		return nil, err
	}
	metrics.JobsSubmittedTotal.Inc()
	logger.Log.Info("job added", zap.String("job_id", job.ID), zap.String("url", data.URL))

	u.publish(ctx, domain.JobEvent{JobID: job.ID, URL: data.URL, State: domain.JobQueued, At: time.Now().UTC()})
	return job, nil
}

func (u *transcodingUseCase) Get(ctx context.Context, id string) (*domain.Job, error) {
	return u.JobRepo.Get(ctx, id)
}

func (u *transcodingUseCase) List(ctx context.Context, q domain.ListQuery) ([]domain.Job, error) {
	if len(q.States) == 0 {
		q.States = domain.AllStates
	}
	return u.JobRepo.List(ctx, q)
}

func (u *transcodingUseCase) Logs(ctx context.Context, id string, start, end int64) (*domain.JobLogs, error) {
	return u.JobRepo.Logs(ctx, id, start, end)
}

func (u *transcodingUseCase) Counts(ctx context.Context) (map[domain.JobState]int64, error) {
	return u.JobRepo.Counts(ctx)
}

func (u *transcodingUseCase) Metrics(ctx context.Context) (map[string]string, error) {
	return u.MetricsRepo.RedisMetrics(ctx)
}

// Cancel 只允許 active job, worker 透過 pub/sub 與 liveness check 停止轉碼
func (u *transcodingUseCase) Cancel(ctx context.Context, id string) (*domain.Job, error) {
	job, err := u.JobRepo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("job cancel requested", zap.String("job_id", id))
	return job, nil
}

// Delete 刪除非 active 的 job; 輸出檔與 mirror 只在 job 自己產出時才刪除,
// 同名的失敗 / 取消 job 不能動到別人完成的輸出
func (u *transcodingUseCase) Delete(ctx context.Context, id string) (*domain.Job, error) {
	job, err := u.JobRepo.Remove(ctx, id)
	if err != nil {
		return nil, err
	}

	name, owned := u.ownedOutput(job)
	if !owned {
		logger.Log.Info("job deleted", zap.String("job_id", id))
		return job, nil
	}

	path, err := u.Storage.DeleteOutput(job.Data.URL)
	if err != nil {
		// job 已刪除, 輸出檔刪除失敗只記錄
		logger.Log.Warn("delete output failed", zap.String("job_id", id), zap.Error(err))
	} else {
		logger.Log.Info("job deleted", zap.String("job_id", id), zap.String("output", path))
	}
	if err := u.Mirror.Remove(ctx, name); err != nil {
		logger.Log.Warn("remove mirrored output failed", zap.String("job_id", id), zap.Error(err))
	}
	return job, nil
}

// ownedOutput output name when job is the completed job that produced it
func (u *transcodingUseCase) ownedOutput(job *domain.Job) (string, bool) {
	if job.State != domain.JobCompleted || job.ReturnValue == "" {
		return "", false
	}
	name, err := u.Storage.OutputName(job.Data.URL)
	if err != nil {
		return "", false
	}
	return name, job.ReturnValue == u.Storage.PublicPath(name)
}

// Clean 移除超過 grace 的 job, 不刪除輸出檔
func (u *transcodingUseCase) Clean(ctx context.Context, states []domain.JobState, grace time.Duration, limit int64) ([]string, error) {
	if len(states) == 0 {
		return nil, &domain.InputError{Message: `Parameter "?status" is required. Valid values are completed, wait, active, and failed.`}
	}
	if pkg.Contains(states, domain.JobActive) {
		return nil, &domain.InputError{Message: "active jobs cannot be cleaned", Err: domain.ErrJobActive}
	}
	if grace < 0 {
		grace = 0
	}
	ids, err := u.JobRepo.Cleanup(ctx, states, grace, limit)
	if err != nil {
		if errors.Is(err, domain.ErrJobActive) {
			return nil, &domain.InputError{Message: "active jobs cannot be cleaned", Err: err}
		}
		return nil, err
	}
	logger.Log.Info("jobs cleaned", zap.Int("count", len(ids)))
	return ids, nil
}

func (u *transcodingUseCase) publish(ctx context.Context, ev domain.JobEvent) {
	if err := u.Notifier.Publish(ctx, ev); err != nil {
		logger.Log.Warn("publish job event failed", zap.String("job_id", ev.JobID), zap.Error(err))
	}
}
