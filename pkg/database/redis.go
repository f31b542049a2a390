package database

import (
	"context"
	"fmt"
	"time"

	"transcoding_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NewRedisClient create redis connection have retry
// 哨兵地址存在時使用 FailoverClient, 否則直連
func NewRedisClient(d RedisConnection) (*redis.Client, error) {
	var rdb *redis.Client
	if len(d.SentinelAddrs) > 0 {
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    d.MasterName,
			SentinelAddrs: d.SentinelAddrs,
			Password:      d.Password,
			DB:            d.DB,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     d.Addr,
			Password: d.Password,
			DB:       d.DB,
		})
	}

	retry := d.RetryCount
	if retry < 1 {
		retry = 1
	}

	var err error
	for i := 1; i <= retry; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			logger.Log.Info("redis connected", zap.String("addr", d.Addr), zap.Int("attempt", i))
			return rdb, nil
		}
		logger.Log.Warn(
			"Failed to connect to redis, retrying...",
			zap.Int("attempt", i),
			zap.String("address", fmt.Sprintf("[%s]", d.Addr)),
			zap.Error(err),
		)
		if i < retry {
			time.Sleep(d.RetryInterval * time.Second)
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("failed to connect to redis: %w", err)
}
