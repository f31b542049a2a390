package repository

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// redisInfoFields INFO fields exposed on the metrics endpoint
var redisInfoFields = []string{
	"redis_version",
	"used_memory",
	"mem_fragmentation_ratio",
	"connected_clients",
	"blocked_clients",
}

// MetricsRepo reads backing store statistics
type MetricsRepo interface {
	RedisMetrics(ctx context.Context) (map[string]string, error)
}

type redisMetricsRepo struct {
	client *redis.Client
}

// NewMetricsRepo create MetricsRepo
func NewMetricsRepo(client *redis.Client) MetricsRepo {
	return &redisMetricsRepo{client: client}
}

func (r *redisMetricsRepo) RedisMetrics(ctx context.Context) (map[string]string, error) {
	raw, err := r.client.Info(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis info: %w", err)
	}
	return selectInfo(parseInfo(raw)), nil
}

// parseInfo parse the `key:value` lines of a redis INFO reply, skipping `# Section` headers
func parseInfo(raw string) map[string]string {
	info := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		info[key] = value
	}
	return info
}

func selectInfo(info map[string]string) map[string]string {
	out := make(map[string]string, len(redisInfoFields)+1)
	for _, field := range redisInfoFields {
		if v := info[field]; v != "" {
			out[field] = v
		}
	}
	// 容器內 total_system_memory 可能為 0, 退回 maxmemory
	if v := info["total_system_memory"]; v != "" && v != "0" {
		out["total_system_memory"] = v
	} else if v := info["maxmemory"]; v != "" {
		out["total_system_memory"] = v
	}
	return out
}
