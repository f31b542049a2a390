package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/logger"
	"transcoding_service/pkg/metrics"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Fetcher streams a remote resource into a local staging file.
// The caller owns the returned file.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) (string, error)
}

// StagingPathFunc returns a unique staging path for a source URL
type StagingPathFunc func(sourceURL string) string

type httpFetcher struct {
	client    *http.Client
	staging   StagingPathFunc
	timeout   time.Duration
	userAgent string
}

// New create Fetcher on top of client (http.DefaultClient when nil)
func New(cfg config.FetchConfig, staging StagingPathFunc, client *http.Client) Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "transcoding-service"
	}
	return &httpFetcher{
		client:    client,
		staging:   staging,
		timeout:   cfg.Timeout,
		userAgent: ua,
	}
}

func (f *httpFetcher) Fetch(ctx context.Context, sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", f.fail(&domain.FetchError{URL: sourceURL, Err: err})
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", f.fail(&domain.FetchError{URL: sourceURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)})
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", f.fail(&domain.FetchError{URL: sourceURL, Err: fmt.Errorf("build request: %w", err)})
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", f.fail(&domain.FetchError{URL: sourceURL, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", f.fail(&domain.FetchError{URL: sourceURL, StatusCode: resp.StatusCode})
	}

	dest := f.staging(sourceURL)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", f.fail(&domain.FetchError{URL: sourceURL, Err: fmt.Errorf("prepare staging directory: %w", err)})
	}
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", f.fail(&domain.FetchError{URL: sourceURL, Err: fmt.Errorf("create staging file: %w", err)})
	}

	// 直接寫入磁碟, 不在記憶體中保留整個檔案
	n, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	metrics.FetchBytesTotal.Add(float64(n))
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Log.Warn("remove partial staging file failed", zap.String("path", dest), zap.Error(err))
		}
		return "", f.fail(&domain.FetchError{URL: sourceURL, Err: fmt.Errorf("write staging file: %w", copyErr)})
	}

	logger.Log.Info("source fetched",
		zap.String("url", sourceURL),
		zap.String("staging", dest),
		zap.String("size", humanize.Bytes(uint64(n))),
	)
	return dest, nil
}

func (f *httpFetcher) fail(err *domain.FetchError) error {
	metrics.FetchErrorsTotal.Inc()
	logger.Log.Warn("fetch failed", zap.String("url", err.URL), zap.Error(err))
	return err
}
