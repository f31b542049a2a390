package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/internal/transcoding/ffmpeg"
	"transcoding_service/internal/transcoding/repository"
	"transcoding_service/internal/transcoding/storage"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeProcess 模擬 ffmpeg 子程序
type fakeProcess struct {
	events chan ffmpeg.Event
	killed chan struct{}
	once   sync.Once
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{events: make(chan ffmpeg.Event), killed: make(chan struct{})}
}

func (p *fakeProcess) Events() <-chan ffmpeg.Event { return p.events }

func (p *fakeProcess) Kill() error {
	p.once.Do(func() { close(p.killed) })
	return nil
}

// emit returns false once the process was killed
func (p *fakeProcess) emit(ev ffmpeg.Event) bool {
	select {
	case p.events <- ev:
		return true
	case <-p.killed:
		return false
	}
}

func (p *fakeProcess) wasKilled() bool {
	select {
	case <-p.killed:
		return true
	default:
		return false
	}
}

type script func(p *fakeProcess, input, output string)

type fakeRunner struct {
	script   script
	startErr error

	mu    sync.Mutex
	procs []*fakeProcess
}

func (r *fakeRunner) Start(ctx context.Context, input, output string) (ffmpeg.Process, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	p := newFakeProcess()
	r.mu.Lock()
	r.procs = append(r.procs, p)
	r.mu.Unlock()

	go func() {
		defer close(p.events)
		r.script(p, input, output)
		if p.wasKilled() {
			p.events <- ffmpeg.Failure{Err: errors.New("signal: killed"), ExitCode: -1}
		}
	}()
	return p, nil
}

func (r *fakeRunner) last() *fakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.procs) == 0 {
		return nil
	}
	return r.procs[len(r.procs)-1]
}

func (r *fakeRunner) started() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// successScript a 10s source transcoded in one progress step
func successScript(p *fakeProcess, input, output string) {
	steps := []ffmpeg.Event{
		ffmpeg.Start{CommandLine: "ffmpeg -i " + input + " -y " + output},
		ffmpeg.CodecData{Format: "mov,mp4", Duration: "00:00:10.00", Video: "h264", Audio: "aac"},
		ffmpeg.Progress{Frames: 150, Timemark: "00:00:05.00"},
	}
	for _, ev := range steps {
		if !p.emit(ev) {
			return
		}
	}
	if err := os.WriteFile(output, []byte("webm"), 0o644); err != nil {
		p.emit(ffmpeg.Failure{Err: err, ExitCode: 1})
		return
	}
	p.emit(ffmpeg.End{})
}

// feedScript starts, reports duration, then forwards events from feed until killed
func feedScript(feed <-chan ffmpeg.Event) script {
	return func(p *fakeProcess, input, output string) {
		if !p.emit(ffmpeg.Start{CommandLine: "ffmpeg -i " + input + " " + output}) {
			return
		}
		if !p.emit(ffmpeg.CodecData{Duration: "00:00:10.00"}) {
			return
		}
		for {
			select {
			case ev := <-feed:
				if _, ok := ev.(ffmpeg.End); ok {
					os.WriteFile(output, []byte("webm"), 0o644)
				}
				if !p.emit(ev) {
					return
				}
				if _, ok := ev.(ffmpeg.End); ok {
					return
				}
			case <-p.killed:
				return
			}
		}
	}
}

// fakeFetcher writes a small staging file
type fakeFetcher struct {
	store *storage.Storage
	err   error
	block bool
	calls int32

	mu    sync.Mutex
	paths []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceURL string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}
	if f.block {
		<-ctx.Done()
		return "", &domain.FetchError{URL: sourceURL, Err: ctx.Err()}
	}
	path := f.store.StagingPath(sourceURL)
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	return path, nil
}

func (f *fakeFetcher) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

func (f *fakeFetcher) lastPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.paths) == 0 {
		return ""
	}
	return f.paths[len(f.paths)-1]
}

// MockNotifier 是 Notifier 的 Mock
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(ctx context.Context, ev domain.JobEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// recordingRepo records every progress write
type recordingRepo struct {
	repository.JobRepo
	mu       sync.Mutex
	progress []float64
}

func (r *recordingRepo) SetProgress(ctx context.Context, id string, percent float64) error {
	r.mu.Lock()
	r.progress = append(r.progress, percent)
	r.mu.Unlock()
	return r.JobRepo.SetProgress(ctx, id, percent)
}

func (r *recordingRepo) written() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.progress...)
}

type testEnv struct {
	mr       *miniredis.Miniredis
	repo     *recordingRepo
	store    *storage.Storage
	fetcher  *fakeFetcher
	runner   *fakeRunner
	notifier *MockNotifier
	coord    *Coordinator
	uc       TranscodingUseCase
}

func newTestEnv(t *testing.T, sc script, stall time.Duration) *testEnv {
	t.Helper()
	logger.SetNewNop()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	dir := t.TempDir()
	store, err := storage.New(config.StorageConfig{
		OutputDir:    filepath.Join(dir, "files"),
		StagingDir:   filepath.Join(dir, "tmp"),
		Extension:    ".webm",
		PublicPrefix: "files",
	})
	require.NoError(t, err)

	repo := &recordingRepo{JobRepo: repository.NewJobRepo(client, "test", repository.WithLockTTL(2*time.Second))}
	fetch := &fakeFetcher{store: store}
	runner := &fakeRunner{script: sc}
	notifier := new(MockNotifier)
	notifier.On("Publish", mock.Anything, mock.Anything).Return(nil)

	coord := NewCoordinator(CoordinatorDeps{
		Repo:         repo,
		Storage:      store,
		Fetcher:      fetch,
		Runner:       runner,
		Notifier:     notifier,
		StallTimeout: stall,
	})
	uc := NewTranscodingUseCase(repo, repository.NewMetricsRepo(client), store, nil, notifier)

	return &testEnv{
		mr:       mr,
		repo:     repo,
		store:    store,
		fetcher:  fetch,
		runner:   runner,
		notifier: notifier,
		coord:    coord,
		uc:       uc,
	}
}

// submitAndClaim enqueue url and claim it as a worker would
func (e *testEnv) submitAndClaim(t *testing.T, url string) *domain.Job {
	t.Helper()
	_, err := e.uc.Submit(context.Background(), domain.JobData{URL: url})
	require.NoError(t, err)
	job, _, err := e.repo.Claim(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

// processAsync run the coordinator in the background
func (e *testEnv) processAsync(ctx context.Context, job *domain.Job) <-chan error {
	done := make(chan error, 1)
	go func() { done <- e.coord.Process(ctx, job) }()
	return done
}

func (e *testEnv) stagingFiles(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(e.store.StagingPath("x")), "*"))
	require.NoError(t, err)
	return matches
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate")
		return nil
	}
}
