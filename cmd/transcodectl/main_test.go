package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"transcoding_service/internal/transcoding/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
}

func (fs *fakeService) record(r *http.Request) {
	fs.mu.Lock()
	fs.requests = append(fs.requests, r.Method+" "+r.URL.RequestURI())
	fs.mu.Unlock()
}

func (fs *fakeService) seen() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.requests...)
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	fs := &fakeService{}
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, code int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(v)
	}
	created := time.Now().Add(-2 * time.Minute)

	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		switch r.Method {
		case http.MethodPost:
			var data domain.JobData
			json.NewDecoder(r.Body).Decode(&data)
			if data.URL == "" {
				writeJSON(w, 400, map[string]interface{}{"code": 400, "error": "Failed to create job. Invalid URL param"})
				return
			}
			writeJSON(w, 200, map[string]interface{}{"message": "job added", "job": domain.Job{ID: "3", Data: data, State: domain.JobQueued}})
		case http.MethodGet:
			writeJSON(w, 200, []domain.Job{
				{ID: "2", State: domain.JobActive, Progress: 42.5, CreatedAt: created, Data: domain.JobData{URL: "http://host/b.mp4"}},
				{ID: "1", State: domain.JobCompleted, Progress: 100, CreatedAt: created, Data: domain.JobData{URL: "http://host/a.mp4"}},
			})
		case http.MethodDelete:
			writeJSON(w, 200, map[string]interface{}{"message": "cleaned 1 jobs", "deleted_ids": []string{"1"}})
		}
	})
	mux.HandleFunc("/jobs/1", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		if r.Method == http.MethodDelete {
			writeJSON(w, 200, map[string]interface{}{"message": "deleted job with id 1"})
			return
		}
		finished := created.Add(time.Minute)
		writeJSON(w, 200, map[string]interface{}{"job": domain.Job{
			ID: "1", State: domain.JobCompleted, Progress: 100, CreatedAt: created, FinishedAt: &finished,
			Data: domain.JobData{URL: "http://host/a.mp4"}, ReturnValue: "files/a.webm",
		}})
	})
	mux.HandleFunc("/jobs/1/logs", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		writeJSON(w, 200, domain.JobLogs{Logs: []string{"[ffmpeg] ffmpeg -i a.mp4", "[del] Deleted temporary file in /tmp/x"}, Count: 2})
	})
	mux.HandleFunc("/jobs/9/cancel", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, map[string]interface{}{"code": 400, "error": "only active jobs can be cancelled"})
	})
	mux.HandleFunc("/counts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]int64{"queued": 1200, "active": 1})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]string{"redis_version": "7.2.4", "used_memory": "1048576"})
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func runCLI(t *testing.T, server string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSubmit(t *testing.T) {
	fs := newFakeService(t)

	out, _, err := runCLI(t, fs.URL, "submit", "http://host/c.mp4")
	require.NoError(t, err)
	assert.Equal(t, "job added: #3\n", out)

	_, _, err = runCLI(t, fs.URL, "submit", "")
	assert.EqualError(t, err, "Failed to create job. Invalid URL param (400)")

	_, _, err = runCLI(t, fs.URL, "submit")
	assert.Error(t, err)
}

func TestListAndShow(t *testing.T) {
	fs := newFakeService(t)

	out, _, err := runCLI(t, fs.URL, "list", "--status", "active,completed", "--asc")
	require.NoError(t, err)
	assert.Contains(t, out, "42.5%")
	assert.Contains(t, out, "http://host/a.mp4")
	assert.Contains(t, out, "2 minutes ago")
	assert.Contains(t, fs.seen(), "GET /jobs?asc=true&end=19&start=0&status=active%2Ccompleted")

	out, _, err = runCLI(t, fs.URL, "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "State:    completed")
	assert.Contains(t, out, "Output:   files/a.webm")
}

func TestLogs(t *testing.T) {
	fs := newFakeService(t)

	out, errOut, err := runCLI(t, fs.URL, "logs", "1")
	require.NoError(t, err)
	assert.Equal(t, "[ffmpeg] ffmpeg -i a.mp4\n[del] Deleted temporary file in /tmp/x\n", out)
	assert.Equal(t, "2 of 2 lines\n", errOut)
}

func TestCancelDeleteClean(t *testing.T) {
	fs := newFakeService(t)

	_, _, err := runCLI(t, fs.URL, "cancel", "9")
	assert.EqualError(t, err, "only active jobs can be cancelled (400)")

	out, _, err := runCLI(t, fs.URL, "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted job with id 1\n", out)

	_, _, err = runCLI(t, fs.URL, "clean")
	assert.EqualError(t, err, "--status is required")

	out, _, err = runCLI(t, fs.URL, "clean", "--status", "completed", "--grace", "1h", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, "cleaned 1 jobs\n  #1\n", out)
	assert.Contains(t, fs.seen(), "DELETE /jobs?grace=3600000&limit=5&status=completed")
}

func TestCountsAndHealth(t *testing.T) {
	fs := newFakeService(t)

	out, _, err := runCLI(t, fs.URL, "counts")
	require.NoError(t, err)
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "cancelled")

	out, _, err = runCLI(t, fs.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "7.2.4")
	assert.Contains(t, out, "1.0 MiB")
}
