package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobRepo definition the job queue.
// The only component with cross-job concurrency concerns: every state change runs
// as an optimistic WATCH/MULTI transaction on the job hash.
type JobRepo interface {
	Enqueue(ctx context.Context, data domain.JobData) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, q domain.ListQuery) ([]domain.Job, error)
	Logs(ctx context.Context, id string, start, end int64) (*domain.JobLogs, error)
	Counts(ctx context.Context) (map[domain.JobState]int64, error)

	AppendLog(ctx context.Context, id, line string) error
	SetProgress(ctx context.Context, id string, percent float64) error
	Transition(ctx context.Context, id string, to domain.JobState, payload domain.Transition) (*domain.Job, error)
	IsActive(ctx context.Context, id string) (bool, error)

	Claim(ctx context.Context, timeout time.Duration) (*domain.Job, string, error)
	ExtendLock(ctx context.Context, id, token string) error
	RecoverStalled(ctx context.Context) ([]string, error)

	Cancel(ctx context.Context, id string) (*domain.Job, error)
	Remove(ctx context.Context, id string) (*domain.Job, error)
	Cleanup(ctx context.Context, states []domain.JobState, olderThan time.Duration, limit int64) ([]string, error)
	SubscribeCancel(ctx context.Context, handler func(id string)) error
}

// ErrLockLost the claim lock expired or belongs to another worker
var ErrLockLost = errors.New("job lock lost")

const (
	fieldData         = "data"
	fieldState        = "state"
	fieldProgress     = "progress"
	fieldCreatedAt    = "created_at"
	fieldProcessedAt  = "processed_at"
	fieldFinishedAt   = "finished_at"
	fieldReturnValue  = "returnvalue"
	fieldFailedReason = "failed_reason"
	fieldStacktrace   = "stacktrace"

	maxTxRetries = 10
)

type redisJobRepo struct {
	client  *redis.Client
	prefix  string
	lockTTL time.Duration
	now     func() time.Time
}

// Option configure redisJobRepo
type Option func(*redisJobRepo)

// WithLockTTL set how long a claim lock lives without renewal
func WithLockTTL(ttl time.Duration) Option {
	return func(r *redisJobRepo) {
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

// WithClock replace the time source
func WithClock(now func() time.Time) Option {
	return func(r *redisJobRepo) { r.now = now }
}

// NewJobRepo create JobRepo on redis, every key is namespaced by prefix
func NewJobRepo(client *redis.Client, prefix string, opts ...Option) JobRepo {
	if prefix == "" {
		prefix = "transcode"
	}
	r := &redisJobRepo{
		client:  client,
		prefix:  prefix,
		lockTTL: 30 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *redisJobRepo) idKey() string            { return r.prefix + ":id" }
func (r *redisJobRepo) jobKey(id string) string  { return r.prefix + ":job:" + id }
func (r *redisJobRepo) logsKey(id string) string { return r.prefix + ":logs:" + id }
func (r *redisJobRepo) lockKey(id string) string { return r.prefix + ":lock:" + id }
func (r *redisJobRepo) stateKey(s domain.JobState) string {
	return r.prefix + ":" + string(s)
}
func (r *redisJobRepo) cancelChannel() string { return r.prefix + ":cancel" }

// queued / active are lists (LPUSH, newest first), terminal states are zsets scored by finished_at
func isListState(s domain.JobState) bool {
	return s == domain.JobQueued || s == domain.JobActive
}

func (r *redisJobRepo) Enqueue(ctx context.Context, data domain.JobData) (*domain.Job, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal job data: %w", err)
	}
	n, err := r.client.Incr(ctx, r.idKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate job id: %w", err)
	}
	id := strconv.FormatInt(n, 10)
	now := r.now()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.jobKey(id),
			fieldData, string(raw),
			fieldState, string(domain.JobQueued),
			fieldProgress, "0",
			fieldCreatedAt, toMillis(now),
		)
		pipe.LPush(ctx, r.stateKey(domain.JobQueued), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", id, err)
	}

	return &domain.Job{
		ID:        id,
		Data:      data,
		State:     domain.JobQueued,
		CreatedAt: fromMillis(toMillis(now)),
	}, nil
}

func (r *redisJobRepo) Get(ctx context.Context, id string) (*domain.Job, error) {
	fields, err := r.client.HGetAll(ctx, r.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeJob(id, fields)
}

func (r *redisJobRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.Job, error) {
	var ids []string
	for _, state := range q.States {
		stateIDs, err := r.rangeIDs(ctx, state, q.Start, q.End, q.Asc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, stateIDs...)
	}
	return r.loadJobs(ctx, ids)
}

func (r *redisJobRepo) rangeIDs(ctx context.Context, state domain.JobState, start, end int64, asc bool) ([]string, error) {
	key := r.stateKey(state)
	if isListState(state) {
		if !asc {
			return r.client.LRange(ctx, key, start, end).Result()
		}
		all, err := r.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		reverse(all)
		return sliceRange(all, start, end), nil
	}
	if asc {
		return r.client.ZRange(ctx, key, start, end).Result()
	}
	return r.client.ZRevRange(ctx, key, start, end).Result()
}

func (r *redisJobRepo) loadJobs(ctx context.Context, ids []string) ([]domain.Job, error) {
	if len(ids) == 0 {
		return []domain.Job{}, nil
	}
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.jobKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	jobs := make([]domain.Job, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// 已被刪除
			continue
		}
		job, err := decodeJob(ids[i], fields)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (r *redisJobRepo) Logs(ctx context.Context, id string, start, end int64) (*domain.JobLogs, error) {
	exists, err := r.client.Exists(ctx, r.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if exists == 0 {
		return nil, domain.ErrNotFound
	}

	var rangeCmd *redis.StringSliceCmd
	var lenCmd *redis.IntCmd
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, r.logsKey(id), start, end)
		lenCmd = pipe.LLen(ctx, r.logsKey(id))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get logs %s: %w", id, err)
	}
	return &domain.JobLogs{Logs: rangeCmd.Val(), Count: lenCmd.Val()}, nil
}

func (r *redisJobRepo) Counts(ctx context.Context) (map[domain.JobState]int64, error) {
	cmds := make(map[domain.JobState]*redis.IntCmd, len(domain.AllStates))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, state := range domain.AllStates {
			if isListState(state) {
				cmds[state] = pipe.LLen(ctx, r.stateKey(state))
			} else {
				cmds[state] = pipe.ZCard(ctx, r.stateKey(state))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	counts := make(map[domain.JobState]int64, len(cmds))
	for state, cmd := range cmds {
		counts[state] = cmd.Val()
	}
	return counts, nil
}

func (r *redisJobRepo) AppendLog(ctx context.Context, id, line string) error {
	if err := r.client.RPush(ctx, r.logsKey(id), line).Err(); err != nil {
		return fmt.Errorf("append log %s: %w", id, err)
	}
	return nil
}

// SetProgress last write wins; only an active job accepts progress
func (r *redisJobRepo) SetProgress(ctx context.Context, id string, percent float64) error {
	percent = clampPercent(percent)
	key := r.jobKey(id)
	return r.watch(ctx, func(tx *redis.Tx) error {
		state, err := currentState(ctx, tx, key)
		if err != nil {
			return err
		}
		if state != domain.JobActive {
			return domain.ErrJobNotActive
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldProgress, strconv.FormatFloat(percent, 'f', -1, 64))
			return nil
		})
		return err
	}, key)
}

func (r *redisJobRepo) Transition(ctx context.Context, id string, to domain.JobState, payload domain.Transition) (*domain.Job, error) {
	key := r.jobKey(id)
	err := r.watch(ctx, func(tx *redis.Tx) error {
		from, err := currentState(ctx, tx, key)
		if err != nil {
			return err
		}
		if !domain.CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.applyTransition(ctx, pipe, id, from, to, payload)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *redisJobRepo) applyTransition(ctx context.Context, pipe redis.Pipeliner, id string, from, to domain.JobState, payload domain.Transition) {
	key := r.jobKey(id)
	now := toMillis(r.now())

	values := []interface{}{fieldState, string(to)}
	switch to {
	case domain.JobActive:
		values = append(values, fieldProcessedAt, now)
	case domain.JobCompleted:
		values = append(values, fieldFinishedAt, now, fieldReturnValue, payload.ReturnValue)
	case domain.JobFailed, domain.JobCancelled:
		values = append(values, fieldFinishedAt, now, fieldFailedReason, payload.FailedReason)
		if payload.Stacktrace != "" {
			values = append(values, fieldStacktrace, payload.Stacktrace)
		}
	}
	pipe.HSet(ctx, key, values...)

	pipe.LRem(ctx, r.stateKey(from), 0, id)
	if isListState(to) {
		pipe.LPush(ctx, r.stateKey(to), id)
	} else {
		pipe.ZAdd(ctx, r.stateKey(to), &redis.Z{Score: float64(now), Member: id})
	}
	if to.IsTerminal() {
		pipe.Del(ctx, r.lockKey(id))
	}
}

func (r *redisJobRepo) IsActive(ctx context.Context, id string) (bool, error) {
	state, err := r.client.HGet(ctx, r.jobKey(id), fieldState).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check job %s: %w", id, err)
	}
	return domain.JobState(state) == domain.JobActive, nil
}

// claimScript takes an id BRPOPLPUSH already moved into active.
// It fails when the id left the active list meanwhile (requeued by recovery).
// KEYS: job hash, active list, lock. ARGV: id, token, lock ttl ms, now ms.
// 1 claimed, 0 job missing, -1 not queued, -2 no longer in active
var claimScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
	redis.call('LREM', KEYS[2], 0, ARGV[1])
	return 0
end
if state ~= 'queued' then
	redis.call('LREM', KEYS[2], 0, ARGV[1])
	return -1
end
if redis.call('LREM', KEYS[2], 0, ARGV[1]) == 0 then
	return -2
end
redis.call('LPUSH', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], 'state', 'active', 'processed_at', ARGV[4])
redis.call('SET', KEYS[3], ARGV[2], 'PX', ARGV[3])
return 1
`)

// requeueScript moves an id that sits in active but was never claimed
// (still queued, no lock) back to the tail of queued, so it is claimed next.
// KEYS: job hash, active list, lock, queued list. ARGV: id
var requeueScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'queued' then
	return 0
end
if redis.call('EXISTS', KEYS[3]) == 1 then
	return 0
end
if redis.call('LREM', KEYS[2], 0, ARGV[1]) == 0 then
	return 0
end
redis.call('RPUSH', KEYS[4], ARGV[1])
return 1
`)

// Claim blocks up to timeout for a queued job, moves it to active and takes its lock.
// Returns a nil job when nothing was queued.
func (r *redisJobRepo) Claim(ctx context.Context, timeout time.Duration) (*domain.Job, string, error) {
	id, err := r.client.BRPopLPush(ctx, r.stateKey(domain.JobQueued), r.stateKey(domain.JobActive), timeout).Result()
	if err == redis.Nil {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("claim job: %w", err)
	}

	// id 已經離開 queued, 之後的寫入不能跟著 worker ctx 一起取消
	wctx := context.WithoutCancel(ctx)
	if err := ctx.Err(); err != nil {
		r.requeue(wctx, id)
		return nil, "", fmt.Errorf("claim job %s: %w", id, err)
	}

	token := uuid.NewString()
	res, err := claimScript.Run(wctx, r.client,
		[]string{r.jobKey(id), r.stateKey(domain.JobActive), r.lockKey(id)},
		id, token, r.lockTTL.Milliseconds(), toMillis(r.now()),
	).Int()
	if err != nil {
		r.requeue(wctx, id)
		return nil, "", fmt.Errorf("claim job %s: %w", id, err)
	}
	if res != 1 {
		return nil, "", nil
	}

	job, err := r.Get(wctx, id)
	if err != nil {
		return nil, "", err
	}
	return job, token, nil
}

// requeue reports whether id went back to queued
func (r *redisJobRepo) requeue(ctx context.Context, id string) (bool, error) {
	n, err := requeueScript.Run(ctx, r.client,
		[]string{r.jobKey(id), r.stateKey(domain.JobActive), r.lockKey(id), r.stateKey(domain.JobQueued)},
		id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("requeue job %s: %w", id, err)
	}
	return n == 1, nil
}

func (r *redisJobRepo) ExtendLock(ctx context.Context, id, token string) error {
	key := r.lockKey(id)
	return r.watch(ctx, func(tx *redis.Tx) error {
		owner, err := tx.Get(ctx, key).Result()
		if err == redis.Nil || (err == nil && owner != token) {
			return ErrLockLost
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.PExpire(ctx, key, r.lockTTL)
			return nil
		})
		return err
	}, key)
}

// RecoverStalled fails active jobs whose lock expired: their worker is gone.
// Ids left in active by a claim that never finished go back to queued instead.
func (r *redisJobRepo) RecoverStalled(ctx context.Context) ([]string, error) {
	ids, err := r.client.LRange(ctx, r.stateKey(domain.JobActive), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	var recovered []string
	for _, id := range ids {
		locked, err := r.client.Exists(ctx, r.lockKey(id)).Result()
		if err != nil {
			return recovered, fmt.Errorf("check lock %s: %w", id, err)
		}
		if locked > 0 {
			continue
		}
		requeued, err := r.requeue(ctx, id)
		if err != nil {
			return recovered, err
		}
		if requeued {
			continue
		}
		_, err = r.Transition(ctx, id, domain.JobFailed, domain.Transition{FailedReason: "job stalled"})
		if errors.Is(err, domain.ErrNotFound) {
			r.client.LRem(ctx, r.stateKey(domain.JobActive), 0, id)
			continue
		}
		if errors.Is(err, domain.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return recovered, err
		}
		recovered = append(recovered, id)
	}
	return recovered, nil
}

// Cancel moves an active job to cancelled, drops its lock so it cannot be
// re-claimed and tells the owning worker through pub/sub.
func (r *redisJobRepo) Cancel(ctx context.Context, id string) (*domain.Job, error) {
	key := r.jobKey(id)
	err := r.watch(ctx, func(tx *redis.Tx) error {
		state, err := currentState(ctx, tx, key)
		if err != nil {
			return err
		}
		if state != domain.JobActive {
			return domain.ErrJobNotActive
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.applyTransition(ctx, pipe, id, domain.JobActive, domain.JobCancelled, domain.Transition{
				FailedReason: domain.CancelReason,
			})
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	// 已經是 cancelled, worker 也會在下次 liveness check 或 lock 續期時發現
	if err := r.client.Publish(ctx, r.cancelChannel(), id).Err(); err != nil {
		logger.Log.Warn("publish cancel failed", zap.String("job_id", id), zap.Error(err))
	}
	return r.Get(ctx, id)
}

func (r *redisJobRepo) SubscribeCancel(ctx context.Context, handler func(id string)) error {
	sub := r.client.Subscribe(ctx, r.cancelChannel())
	// 等待訂閱確認, 之後的 Cancel 都會被收到
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe cancel channel: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				handler(m.Payload)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (r *redisJobRepo) Remove(ctx context.Context, id string) (*domain.Job, error) {
	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.remove(ctx, id); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *redisJobRepo) remove(ctx context.Context, id string) error {
	key := r.jobKey(id)
	return r.watch(ctx, func(tx *redis.Tx) error {
		state, err := currentState(ctx, tx, key)
		if err != nil {
			return err
		}
		if state == domain.JobActive {
			return domain.ErrJobActive
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, r.logsKey(id), r.lockKey(id))
			pipe.LRem(ctx, r.stateKey(domain.JobQueued), 0, id)
			for _, s := range []domain.JobState{domain.JobCompleted, domain.JobFailed, domain.JobCancelled} {
				pipe.ZRem(ctx, r.stateKey(s), id)
			}
			return nil
		})
		return err
	}, key)
}

// Cleanup removes jobs in states that finished (or were queued) at least olderThan ago.
// limit <= 0 means no limit. Active jobs are never cleaned.
func (r *redisJobRepo) Cleanup(ctx context.Context, states []domain.JobState, olderThan time.Duration, limit int64) ([]string, error) {
	cutoff := toMillis(r.now().Add(-olderThan))
	removed := []string{}

	for _, state := range states {
		if state == domain.JobActive {
			return removed, domain.ErrJobActive
		}
		remaining := int64(0)
		if limit > 0 {
			remaining = limit - int64(len(removed))
			if remaining <= 0 {
				break
			}
		}

		candidates, err := r.cleanupCandidates(ctx, state, cutoff, remaining)
		if err != nil {
			return removed, err
		}
		for _, id := range candidates {
			err := r.remove(ctx, id)
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrJobActive) {
				continue
			}
			if err != nil {
				return removed, err
			}
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (r *redisJobRepo) cleanupCandidates(ctx context.Context, state domain.JobState, cutoff int64, limit int64) ([]string, error) {
	if !isListState(state) {
		by := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(cutoff, 10)}
		if limit > 0 {
			by.Count = limit
		}
		return r.client.ZRangeByScore(ctx, r.stateKey(state), by).Result()
	}

	// queued: 依建立時間判斷, 由舊到新
	ids, err := r.client.LRange(ctx, r.stateKey(state), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	reverse(ids)
	var out []string
	for _, id := range ids {
		created, err := r.client.HGet(ctx, r.jobKey(id), fieldCreatedAt).Int64()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		if created > cutoff {
			continue
		}
		out = append(out, id)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// watch runs fn in a WATCH transaction, retrying when a concurrent writer touched the keys
func (r *redisJobRepo) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = r.client.Watch(ctx, fn, keys...)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return err
}

func currentState(ctx context.Context, tx *redis.Tx, key string) (domain.JobState, error) {
	state, err := tx.HGet(ctx, key, fieldState).Result()
	if err == redis.Nil {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return domain.JobState(state), nil
}

func decodeJob(id string, fields map[string]string) (*domain.Job, error) {
	job := &domain.Job{
		ID:           id,
		State:        domain.JobState(fields[fieldState]),
		ReturnValue:  fields[fieldReturnValue],
		FailedReason: fields[fieldFailedReason],
		Stacktrace:   fields[fieldStacktrace],
	}
	if raw := fields[fieldData]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Data); err != nil {
			return nil, fmt.Errorf("decode job %s data: %w", id, err)
		}
	}
	if p, err := strconv.ParseFloat(fields[fieldProgress], 64); err == nil {
		job.Progress = p
	}
	if ms, ok := parseMillis(fields[fieldCreatedAt]); ok {
		job.CreatedAt = fromMillis(ms)
	}
	if ms, ok := parseMillis(fields[fieldProcessedAt]); ok {
		t := fromMillis(ms)
		job.ProcessedAt = &t
	}
	if ms, ok := parseMillis(fields[fieldFinishedAt]); ok {
		t := fromMillis(ms)
		job.FinishedAt = &t
	}
	return job, nil
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func parseMillis(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	return ms, err == nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// sliceRange applies redis LRANGE index semantics (inclusive end, negative from tail)
func sliceRange(s []string, start, end int64) []string {
	n := int64(len(s))
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n {
		return []string{}
	}
	return s[start : end+1]
}
