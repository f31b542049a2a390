package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"transcoding_service/internal/transcoding/domain"
)

// apiClient thin client of the transcoding_service http surface
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(server string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError error body returned by the service
type apiError struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

type messageResp struct {
	Message    string      `json:"message"`
	Job        *domain.Job `json:"job,omitempty"`
	DeletedIDs []string    `json:"deleted_ids,omitempty"`
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e apiError
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s (%d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *apiClient) Submit(ctx context.Context, sourceURL string) (*messageResp, error) {
	var out messageResp
	err := c.do(ctx, http.MethodPost, "/jobs", nil, domain.JobData{URL: sourceURL}, &out)
	return &out, err
}

func (c *apiClient) Get(ctx context.Context, id string) (*domain.Job, error) {
	var out struct {
		Job *domain.Job `json:"job"`
	}
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}

func (c *apiClient) List(ctx context.Context, query url.Values) ([]domain.Job, error) {
	var out []domain.Job
	err := c.do(ctx, http.MethodGet, "/jobs", query, nil, &out)
	return out, err
}

func (c *apiClient) Logs(ctx context.Context, id string, query url.Values) (*domain.JobLogs, error) {
	var out domain.JobLogs
	err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id)+"/logs", query, nil, &out)
	return &out, err
}

func (c *apiClient) Counts(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	err := c.do(ctx, http.MethodGet, "/counts", nil, nil, &out)
	return out, err
}

func (c *apiClient) Metrics(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	err := c.do(ctx, http.MethodGet, "/metrics", nil, nil, &out)
	return out, err
}

func (c *apiClient) Cancel(ctx context.Context, id string) (*messageResp, error) {
	var out messageResp
	err := c.do(ctx, http.MethodPut, "/jobs/"+url.PathEscape(id)+"/cancel", nil, nil, &out)
	return &out, err
}

func (c *apiClient) Delete(ctx context.Context, id string) (*messageResp, error) {
	var out messageResp
	err := c.do(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(id), nil, nil, &out)
	return &out, err
}

func (c *apiClient) Clean(ctx context.Context, query url.Values) (*messageResp, error) {
	var out messageResp
	err := c.do(ctx, http.MethodDelete, "/jobs", query, nil, &out)
	return &out, err
}
