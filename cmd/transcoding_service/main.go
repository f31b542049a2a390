package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"transcoding_service/internal/transcoding/api/handlers"
	"transcoding_service/internal/transcoding/api/router"
	"transcoding_service/internal/transcoding/app"
	"transcoding_service/internal/transcoding/fetcher"
	"transcoding_service/internal/transcoding/ffmpeg"
	"transcoding_service/internal/transcoding/repository"
	"transcoding_service/internal/transcoding/storage"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/database"
	"transcoding_service/pkg/logger"
	testtool "transcoding_service/pkg/test_tool"

	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.Transcoding, config.EnvConfig.TranscodingLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Transcoding](
		config.EnvConfig.Transcoding,
		config.EnvConfig.TranscodingYAMLPath,
		config.TranscodingDefaults(),
	)
	if config.EnvConfig.TranscodingPort != "" {
		cfg.Port = config.EnvConfig.TranscodingPort
	}

	// 1. 連線 Redis (job queue 唯一的儲存)
	redisClient, err := database.NewRedisClient(database.RedisConnection{
		Addr:          cfg.Redis.Addr,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.RedisDB,
		MasterName:    cfg.Redis.MasterName,
		SentinelAddrs: cfg.Redis.SentinelAddrs,
		RetryCount:    cfg.Redis.RetryCount,
		RetryInterval: time.Duration(cfg.Redis.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to redis after retries", zap.String("address", cfg.Redis.Addr), zap.Error(err))
	}
	defer redisClient.Close()

	// 2. 輸出 / 暫存目錄
	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Log.Fatal("init storage failed", zap.Error(err))
	}

	// 3. 選用的 MinIO mirror 與事件通知
	mirror := newMirror(cfg.MinIO)
	notifier, closeNotifier := newNotifier(cfg.Notify)
	defer closeNotifier()

	// 4. 初始化 Repository / UseCase
	jobRepo := repository.NewJobRepo(redisClient, cfg.Redis.KeyPrefix, repository.WithLockTTL(cfg.Queue.LockTTL))
	metricsRepo := repository.NewMetricsRepo(redisClient)

	coord := app.NewCoordinator(app.CoordinatorDeps{
		Repo:         jobRepo,
		Storage:      store,
		Fetcher:      fetcher.New(cfg.Fetch, store.StagingPath, nil),
		Runner:       ffmpeg.NewRunner(cfg.FFmpeg),
		Mirror:       mirror,
		Notifier:     notifier,
		StallTimeout: cfg.Queue.StallTimeout,
	})
	pool := app.NewWorkerPool(jobRepo, coord, app.WorkerPoolConfig{
		Concurrency:  cfg.Queue.Concurrency,
		ClaimTimeout: cfg.Queue.ClaimTimeout,
		LockTTL:      cfg.Queue.LockTTL,
	})
	usecase := app.NewTranscodingUseCase(jobRepo, metricsRepo, store, mirror, notifier)

	// 5. 建立 Fiber 應用
	r := router.NewApp()
	accessLog, closeAccessLog := openAccessLog(config.EnvConfig.TranscodingLogPath)
	defer closeAccessLog()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: accessLog,
	}))
	router.RegisterRoutes(r, handlers.NewJobHandler(usecase), router.FilesConfig{
		Prefix: cfg.Storage.PublicPrefix,
		Root:   store.OutputDir(),
	})

	testtool.StartPprof(":6060")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		addr := cfg.IP + ":" + cfg.Port
		logger.Log.Info(fmt.Sprintf("transcoding service listening on %s", addr))
		return r.Listen(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		return r.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		logger.Log.Error("transcoding service stopped with error", zap.Error(err))
		return
	}
	logger.Log.Info("transcoding service stopped")
}

func newMirror(cfg config.MinIOConfig) storage.Mirror {
	if !cfg.Enabled {
		return storage.NewNoopMirror()
	}
	client, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:      fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:          cfg.User,
		Password:      cfg.Password,
		BucketName:    cfg.BucketName,
		UseSSL:        cfg.UseSSL,
		RetryCount:    cfg.RetryCount,
		RetryInterval: time.Duration(cfg.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to minio after retries", zap.String("host", cfg.Host), zap.Error(err))
	}
	return storage.NewMinIOMirror(client, "")
}

// newNotifier returns the configured publisher and its close func
func newNotifier(cfg config.NotifyConfig) (app.Notifier, func()) {
	switch cfg.Driver {
	case "kafka":
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("Kafka Writer 建立失敗", zap.Error(err))
		}
		return app.NewKafkaNotifier(writer), func() { writer.Close() }

	case "rabbitmq":
		rabbitURL := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port)
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    rabbitURL,
			RetryCount:    cfg.RabbitMQ.RetryCount,
			RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("RabbitMQ 連線失敗", zap.Error(err))
		}
		ch, err := database.OpenQueueChannel(conn, cfg.RabbitMQ.Queue)
		if err != nil {
			conn.Close()
			logger.Log.Fatal("取得 RabbitMQ Channel 失敗", zap.Error(err))
		}
		return app.NewRabbitNotifier(database.NewRabbitRepository(ch), cfg.RabbitMQ.Queue), func() {
			ch.Close()
			conn.Close()
		}

	case "", "none":
		return app.NewNoopNotifier(), func() {}

	default:
		logger.Log.Fatal("unknown notify driver", zap.String("driver", cfg.Driver))
		return nil, nil
	}
}

// openAccessLog access.log under logDir, stdout when logDir is empty
func openAccessLog(logDir string) (io.Writer, func()) {
	if logDir == "" {
		return os.Stdout, func() {}
	}
	file, err := os.OpenFile(filepath.Join(logDir, "access.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Log.Fatal("Failed to open log file", zap.Error(err))
	}
	return file, func() { file.Close() }
}
