package database

import (
	"time"
)

// Connection definition connect string + retry setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// RedisConnection definition redis
// SentinelAddrs 不為空時走哨兵
type RedisConnection struct {
	Addr          string
	Password      string
	DB            int
	MasterName    string
	SentinelAddrs []string

	RetryCount    int
	RetryInterval time.Duration
}

// MinIOConnection definition minio
type MinIOConnection struct {
	Endpoint   string
	User       string
	Password   string
	BucketName string
	UseSSL     bool

	RetryCount    int
	RetryInterval time.Duration
}

// KafkaConnection definition kafka
type KafkaConnection struct {
	Brokers       []string
	Topic         string
	RetryCount    int
	RetryInterval time.Duration
}
