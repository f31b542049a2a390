package app

import (
	"context"
	"encoding/json"
	"fmt"

	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/pkg/database"

	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
)

// Notifier publishes job lifecycle events
type Notifier interface {
	Publish(ctx context.Context, ev domain.JobEvent) error
}

type kafkaNotifier struct {
	writer database.KafkaWriter
}

// NewKafkaNotifier events keyed by job id so one job's events stay ordered on a partition
func NewKafkaNotifier(writer database.KafkaWriter) Notifier {
	return &kafkaNotifier{writer: writer}
}

func (n *kafkaNotifier) Publish(ctx context.Context, ev domain.JobEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.JobID),
		Value: body,
	})
}

type rabbitNotifier struct {
	repo  database.RabbitRepo
	queue string
}

// NewRabbitNotifier events published to queue through the default exchange
func NewRabbitNotifier(repo database.RabbitRepo, queue string) Notifier {
	return &rabbitNotifier{repo: repo, queue: queue}
}

func (n *rabbitNotifier) Publish(_ context.Context, ev domain.JobEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	return n.repo.Publish(
		"",      // exchange
		n.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

type noopNotifier struct{}

// NewNoopNotifier used when notify.driver is none
func NewNoopNotifier() Notifier { return noopNotifier{} }

func (noopNotifier) Publish(context.Context, domain.JobEvent) error { return nil }
