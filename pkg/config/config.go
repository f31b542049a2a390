package config

import "time"

// Transcoding definition transcoding_service YAML structure
type Transcoding struct {
	Port string `mapstructure:"port"`
	IP   string `mapstructure:"ip"`

	Redis   RedisConfig   `mapstructure:"redis"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Storage StorageConfig `mapstructure:"storage"`
	FFmpeg  FFmpegConfig  `mapstructure:"ffmpeg"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	MinIO   MinIOConfig   `mapstructure:"minio"`
	Notify  NotifyConfig  `mapstructure:"notify"`
}

// RedisConfig definition redis setting
// SentinelAddrs 不為空時使用哨兵模式, 否則直連 Addr
type RedisConfig struct {
	Addr          string   `mapstructure:"addr"`
	Password      string   `mapstructure:"password"`
	RedisDB       int      `mapstructure:"redis_db"`
	MasterName    string   `mapstructure:"master_name"`
	SentinelAddrs []string `mapstructure:"sentinel_addrs"`
	KeyPrefix     string   `mapstructure:"key_prefix"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// QueueConfig definition worker pool setting
type QueueConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	ClaimTimeout time.Duration `mapstructure:"claim_timeout"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	StallTimeout time.Duration `mapstructure:"stall_timeout"`
}

// StorageConfig definition output / staging directories
type StorageConfig struct {
	OutputDir    string `mapstructure:"output_dir"`
	StagingDir   string `mapstructure:"staging_dir"`
	Extension    string `mapstructure:"extension"`
	PublicPrefix string `mapstructure:"public_prefix"`
}

// FFmpegConfig definition encoder arguments
type FFmpegConfig struct {
	Binary        string   `mapstructure:"binary"`
	VideoCodec    string   `mapstructure:"video_codec"`
	AudioCodec    string   `mapstructure:"audio_codec"`
	Format        string   `mapstructure:"format"`
	AudioBitrate  string   `mapstructure:"audio_bitrate"`
	VideoBitrate  string   `mapstructure:"video_bitrate"`
	OutputOptions []string `mapstructure:"output_options"`
}

// FetchConfig definition source download setting
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// MinIOConfig definition artifact mirror
type MinIOConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	BucketName    string `mapstructure:"bucket_name"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// NotifyConfig definition job lifecycle event publisher
// Driver: "none" | "kafka" | "rabbitmq"
type NotifyConfig struct {
	Driver   string         `mapstructure:"driver"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// KafkaConfig definition kafka writer
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// RabbitMQConfig definition rabbitmq publisher
type RabbitMQConfig struct {
	IP            string `mapstructure:"ip"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Queue         string `mapstructure:"queue"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// TranscodingDefaults default values for every transcoding_service key
func TranscodingDefaults() map[string]interface{} {
	return map[string]interface{}{
		"port": "4000",
		"ip":   "0.0.0.0",

		"redis.addr":           "127.0.0.1:6379",
		"redis.redis_db":       0,
		"redis.master_name":    "mymaster",
		"redis.key_prefix":     "transcode",
		"redis.retry_interval": 2,
		"redis.retry_count":    5,

		"queue.concurrency":   1,
		"queue.claim_timeout": 5 * time.Second,
		"queue.lock_ttl":      30 * time.Second,
		"queue.stall_timeout": 10 * time.Minute,

		"storage.output_dir":    "./files",
		"storage.staging_dir":   "./tmp",
		"storage.extension":     ".webm",
		"storage.public_prefix": "files",

		"ffmpeg.binary":        "ffmpeg",
		"ffmpeg.video_codec":   "libvpx",
		"ffmpeg.audio_codec":   "libvorbis",
		"ffmpeg.format":        "webm",
		"ffmpeg.audio_bitrate": "128k",
		"ffmpeg.video_bitrate": "1024k",
		"ffmpeg.output_options": []string{
			"-crf", "17",
			"-error-resilient", "1",
			"-deadline", "good",
			"-cpu-used", "2",
		},

		"fetch.timeout":    30 * time.Minute,
		"fetch.user_agent": "transcoding_service",

		"minio.enabled":        false,
		"minio.port":           9000,
		"minio.bucket_name":    "transcoded",
		"minio.retry_interval": 2,
		"minio.retry_count":    5,

		"notify.driver":                  "none",
		"notify.kafka.topic":             "transcode.events",
		"notify.kafka.retry_interval":    2,
		"notify.kafka.retry_count":       5,
		"notify.rabbitmq.queue":          "transcode.events",
		"notify.rabbitmq.retry_interval": 2,
		"notify.rabbitmq.retry_count":    5,
	}
}
