package database

import (
	"context"
	"fmt"
	"time"

	"transcoding_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaWriter definition the writer methods the service needs
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriterWithRetry 建立 Kafka Writer 並發送 ping 確認連線
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	var writer *kafka.Writer
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		writer = &kafka.Writer{
			Addr:                   kafka.TCP(k.Brokers...),
			Topic:                  k.Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte("ping"),
			Value: []byte("ping"),
		})
		cancel()
		if err == nil {
			logger.Log.Info("kafka writer ready", zap.String("topic", k.Topic), zap.Int("attempt", attempt))
			return writer, nil
		}

		logger.Log.Warn("kafka writer failed",
			zap.Int("attempt", attempt),
			zap.Int("retry_count", k.RetryCount),
			zap.Error(err),
		)
		writer.Close()
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("kafka writer unavailable after %d attempts: %w", k.RetryCount, err)
}
