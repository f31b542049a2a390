package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/internal/transcoding/fetcher"
	"transcoding_service/internal/transcoding/ffmpeg"
	"transcoding_service/internal/transcoding/repository"
	"transcoding_service/internal/transcoding/storage"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"

	"go.uber.org/zap"
)

// Coordinator drives one claimed job through fetch and transcode to a terminal state
type Coordinator struct {
	repo         repository.JobRepo
	store        *storage.Storage
	fetcher      fetcher.Fetcher
	runner       ffmpeg.Runner
	mirror       storage.Mirror
	notifier     Notifier
	stallTimeout time.Duration
}

// CoordinatorDeps dependencies of Coordinator, Mirror / Notifier default to no-ops
type CoordinatorDeps struct {
	Repo         repository.JobRepo
	Storage      *storage.Storage
	Fetcher      fetcher.Fetcher
	Runner       ffmpeg.Runner
	Mirror       storage.Mirror
	Notifier     Notifier
	StallTimeout time.Duration
}

// NewCoordinator create Coordinator
func NewCoordinator(d CoordinatorDeps) *Coordinator {
	if d.Mirror == nil {
		d.Mirror = storage.NewNoopMirror()
	}
	if d.Notifier == nil {
		d.Notifier = NewNoopNotifier()
	}
	return &Coordinator{
		repo:         d.Repo,
		store:        d.Storage,
		fetcher:      d.Fetcher,
		runner:       d.Runner,
		mirror:       d.Mirror,
		notifier:     d.Notifier,
		stallTimeout: d.StallTimeout,
	}
}

// Process runs job to a terminal state. ctx is cancelled when the job is cancelled
// or the worker stops. The returned error is the cause of a failed or cancelled job.
func (c *Coordinator) Process(ctx context.Context, job *domain.Job) error {
	s := &session{
		c:       c,
		job:     job,
		ctx:     ctx,
		store:   context.WithoutCancel(ctx),
		state:   domain.SessionStarting,
		log:     logger.Log.With(zap.String("job_id", job.ID), zap.String("url", job.Data.URL)),
		started: time.Now(),
	}
	return s.run()
}

// session one transcode attempt. All state lives on the goroutine calling run.
type session struct {
	c   *Coordinator
	job *domain.Job
	// ctx cancellation signal, store never-cancelled context for queue writes
	ctx   context.Context
	store context.Context
	log   *logger.LogInfo

	state       domain.SessionState
	outputName  string
	outputPath  string
	partialPath string
	stagingPath string
	promoted    bool
	slot        *storage.Slot
	proc        ffmpeg.Process

	duration    int
	lastPercent float64
	cleanupOnce sync.Once
	started     time.Time
}

func (s *session) run() error {
	var err error
	s.outputName, err = s.c.store.OutputName(s.job.Data.URL)
	if err != nil {
		return s.fail(err)
	}
	s.outputPath, err = s.c.store.OutputPath(s.job.Data.URL)
	if err != nil {
		return s.fail(err)
	}
	s.partialPath = s.c.store.PartialPath(s.outputPath)

	// 相同輸出名稱即視為重複工作
	exists, err := s.c.store.Exists(s.outputPath)
	if err != nil {
		return s.fail(fmt.Errorf("check output: %w", err))
	}
	if exists {
		return s.fail(fmt.Errorf("%w: %s", domain.ErrAlreadyExists, s.outputName))
	}
	s.slot, err = s.c.store.AcquireSlot(s.outputPath)
	if err != nil {
		return s.fail(err)
	}

	s.stagingPath, err = s.c.fetcher.Fetch(s.ctx, s.job.Data.URL)
	if err != nil {
		if s.ctx.Err() != nil {
			return s.interrupted()
		}
		return s.fail(err)
	}

	s.proc, err = s.c.runner.Start(s.ctx, s.stagingPath, s.partialPath)
	if err != nil {
		if s.ctx.Err() != nil {
			return s.interrupted()
		}
		return s.fail(&domain.TranscodeError{Message: "start transcoder", ExitCode: -1, Err: err})
	}
	return s.loop()
}

func (s *session) loop() error {
	var stall <-chan time.Time
	var timer *time.Timer
	if s.c.stallTimeout > 0 {
		timer = time.NewTimer(s.c.stallTimeout)
		defer timer.Stop()
		stall = timer.C
	}

	events := s.proc.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return s.fail(&domain.TranscodeError{Message: "transcoder exited without status", ExitCode: -1})
			}
			if done, err := s.handle(ev); done {
				return err
			}
			if timer != nil {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(s.c.stallTimeout)
			}
		case <-s.ctx.Done():
			return s.interrupted()
		case <-stall:
			return s.fail(&domain.TranscodeError{
				Message:  "transcoder stalled",
				ExitCode: -1,
				Err:      fmt.Errorf("no output for %s", s.c.stallTimeout),
			})
		}
	}
}

// handle one event, done reports the session reached a terminal state
func (s *session) handle(ev ffmpeg.Event) (bool, error) {
	switch e := ev.(type) {
	case ffmpeg.Start:
		return false, s.onStart(e)
	case ffmpeg.CodecData:
		return false, s.onCodecData(e)
	case ffmpeg.Progress:
		return s.onProgress(e)
	case ffmpeg.End:
		return true, s.finish()
	case ffmpeg.Failure:
		return true, s.fail(&domain.TranscodeError{
			Message:  fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode),
			ExitCode: e.ExitCode,
			Stderr:   e.Stderr,
			Err:      e.Err,
		})
	default:
		s.log.Warn("unknown transcoder event", zap.String("type", fmt.Sprintf("%T", ev)))
		return false, nil
	}
}

// Starting -> Probing
func (s *session) onStart(e ffmpeg.Start) error {
	s.advance(domain.SessionProbing)
	s.appendLog("[ffmpeg] " + e.CommandLine)
	return nil
}

// Probing -> Running
func (s *session) onCodecData(e ffmpeg.CodecData) error {
	if raw, err := json.Marshal(e); err == nil {
		s.appendLog("[codec-data] " + string(raw))
	}
	duration, err := ffmpeg.ParseTimecode(e.Duration)
	if err != nil {
		// duration 未知時進度維持 0
		s.log.Warn("unknown media duration", zap.String("duration", e.Duration), zap.Error(err))
		duration = 0
	}
	s.duration = duration
	s.advance(domain.SessionRunning)
	return nil
}

// Running -> Running | Aborting
func (s *session) onProgress(e ffmpeg.Progress) (bool, error) {
	if s.state == domain.SessionProbing {
		s.advance(domain.SessionRunning)
	}

	active, err := s.c.repo.IsActive(s.store, s.job.ID)
	if err != nil {
		s.log.Warn("liveness check failed", zap.Error(err))
	} else if !active {
		return true, s.abort()
	}

	percent := s.lastPercent
	if current, err := ffmpeg.ParseTimecode(e.Timemark); err == nil {
		if p := ffmpeg.Percent(current, s.duration); p > percent {
			percent = p
		}
	}

	if raw, err := json.Marshal(struct {
		ffmpeg.Progress
		Percent float64 `json:"percent"`
	}{e, percent}); err == nil {
		s.appendLog("[ffmpeg] progress: " + string(raw))
	}

	if err := s.c.repo.SetProgress(s.store, s.job.ID, percent); err != nil {
		if errors.Is(err, domain.ErrJobNotActive) {
			return true, s.abort()
		}
		s.log.Warn("set progress failed", zap.Error(err))
		return false, nil
	}
	s.lastPercent = percent
	return false, nil
}

// Probing | Running -> Finishing -> Terminated
func (s *session) finish() error {
	if err := s.c.store.Promote(s.partialPath, s.outputPath); err != nil {
		return s.fail(&domain.TranscodeError{Message: "store output", Err: err})
	}
	s.promoted = true
	s.advance(domain.SessionFinishing)
	s.cleanup()

	if err := s.c.repo.SetProgress(s.store, s.job.ID, 100); err != nil {
		if errors.Is(err, domain.ErrJobNotActive) {
			return s.lateCancel()
		}
		s.log.Warn("set progress failed", zap.Error(err))
	}

	result := s.c.store.PublicPath(s.outputName)
	if _, err := s.c.repo.Transition(s.store, s.job.ID, domain.JobCompleted, domain.Transition{ReturnValue: result}); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return s.lateCancel()
		}
		s.log.Error("mark job completed failed", zap.Error(err))
		return err
	}

	if err := s.c.mirror.Upload(s.store, s.outputName, s.outputPath); err != nil {
		s.log.Warn("mirror upload failed", zap.Error(err))
	}
	s.terminate(domain.JobCompleted, result, "")
	s.log.Info("job completed", zap.String("output", result))
	return nil
}

// lateCancel the job was cancelled after the transcoder already finished
func (s *session) lateCancel() error {
	if err := s.c.store.Remove(s.outputPath); err != nil {
		s.log.Warn("remove output of cancelled job failed", zap.Error(err))
	}
	s.promoted = false
	s.terminate(domain.JobCancelled, "", domain.CancelReason)
	return domain.ErrCancelledByUser
}

// Running -> Aborting -> Terminated. The job is already cancelled in the queue.
func (s *session) abort() error {
	s.advance(domain.SessionAborting)
	s.appendLog(fmt.Sprintf("[coordinator] Detected inactive job #%s. Stopping ffmpeg process.", s.job.ID))
	s.stop()
	s.cleanup()

	// 保險: job 仍為 active 時 (例如只收到 ctx 取消) 自行標記取消
	if active, err := s.c.repo.IsActive(s.store, s.job.ID); err == nil && active {
		if _, err := s.c.repo.Transition(s.store, s.job.ID, domain.JobCancelled, domain.Transition{FailedReason: domain.CancelReason}); err != nil {
			s.log.Warn("mark job cancelled failed", zap.Error(err))
		}
	}
	s.terminate(domain.JobCancelled, "", domain.CancelReason)
	s.log.Info("job cancelled")
	return domain.ErrCancelledByUser
}

// any -> Failed -> Terminated
func (s *session) fail(cause error) error {
	s.advance(domain.SessionFailed)
	s.appendLog(fmt.Sprintf("[ffmpeg] %v", cause))
	s.stop()
	s.cleanup()

	_, err := s.c.repo.Transition(s.store, s.job.ID, domain.JobFailed, domain.Transition{
		FailedReason: cause.Error(),
		Stacktrace:   domain.Trace(cause),
	})
	if errors.Is(err, domain.ErrInvalidTransition) {
		// 失敗前已被取消
		s.terminate(domain.JobCancelled, "", domain.CancelReason)
		return domain.ErrCancelledByUser
	}
	if err != nil {
		s.log.Error("mark job failed failed", zap.Error(err))
	}
	s.terminate(domain.JobFailed, "", cause.Error())
	s.log.Warn("job failed", zap.Error(cause))
	return cause
}

// interrupted ctx was cancelled: a user cancel aborts, a worker shutdown fails the job
func (s *session) interrupted() error {
	active, err := s.c.repo.IsActive(s.store, s.job.ID)
	if err == nil && !active {
		return s.abort()
	}
	if errors.Is(context.Cause(s.ctx), domain.ErrCancelledByUser) {
		return s.abort()
	}
	cause := context.Cause(s.ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		cause = errors.New("worker stopped")
	}
	return s.fail(&domain.TranscodeError{Message: "transcode interrupted", ExitCode: -1, Err: cause})
}

// stop kills the subprocess and drains its remaining events
func (s *session) stop() {
	if s.proc == nil {
		return
	}
	if err := s.proc.Kill(); err != nil {
		s.log.Warn("kill transcoder failed", zap.Error(err))
	}
	for range s.proc.Events() {
		// drain
	}
}

// cleanup staging file, partial output and slot lock; runs once per session
func (s *session) cleanup() {
	s.cleanupOnce.Do(func() {
		if s.stagingPath != "" {
			if err := s.c.store.Remove(s.stagingPath); err != nil {
				warn := &domain.CleanupWarning{Path: s.stagingPath, Err: err}
				metrics.CleanupWarningsTotal.Inc()
				s.log.Warn("staging cleanup failed", zap.Error(warn))
				s.appendLog("[del] " + warn.Error())
			} else {
				s.appendLog("[del] Deleted temporary file in " + s.stagingPath)
			}
		}
		// partial 檔只屬於持有 slot 的 session
		if s.slot != nil && !s.promoted {
			if err := s.c.store.Remove(s.partialPath); err != nil {
				s.log.Warn("remove partial output failed", zap.String("path", s.partialPath), zap.Error(err))
			}
		}
		s.slot.Release()
	})
}

func (s *session) terminate(state domain.JobState, output, reason string) {
	s.advance(domain.SessionTerminated)
	metrics.JobsFinishedTotal.WithLabelValues(string(state)).Inc()
	metrics.JobDuration.WithLabelValues(string(state)).Observe(time.Since(s.started).Seconds())

	ev := domain.JobEvent{
		JobID:  s.job.ID,
		URL:    s.job.Data.URL,
		State:  state,
		Output: output,
		Reason: reason,
		At:     time.Now().UTC(),
	}
	if err := s.c.notifier.Publish(s.store, ev); err != nil {
		s.log.Warn("publish job event failed", zap.Error(err))
	}
}

func (s *session) advance(to domain.SessionState) {
	if !s.state.CanAdvance(to) {
		s.log.Debug("ignored session transition", zap.String("from", string(s.state)), zap.String("to", string(to)))
		return
	}
	s.state = to
}

func (s *session) appendLog(line string) {
	if err := s.c.repo.AppendLog(s.store, s.job.ID, line); err != nil {
		s.log.Warn("append job log failed", zap.Error(err))
	}
}
