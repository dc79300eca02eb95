package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/relgraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExtractQueue receives ExtractionJob messages.
	ExtractQueue = "extract_queue"
	// ResultQueue receives ExtractionJobResult messages.
	ResultQueue = "extract_result_queue"

	retryDelayMs = 10000
	maxRetries   = 10
)

// Publisher sends a message to a named queue on the default exchange.
type Publisher interface {
	Publish(ctx context.Context, queueName string, msg amqp091.Publishing) error
}

// ChannelPublisher publishes over a single amqp channel. Channels are not
// safe for concurrent use, so publishes are serialized.
type ChannelPublisher struct {
	mu sync.Mutex
	ch *amqp091.Channel
}

func NewChannelPublisher(ch *amqp091.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, queueName string, msg amqp091.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(ctx, "", queueName, false, false, msg)
}

// Init dials RabbitMQ at url.
func Init(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares every queue together with its _dlq and _retry
// companions. Messages in the retry queue go back to the main queue after
// retryDelayMs.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retryName, err)
		}
		logger.Debug("[Queue] Declared queue", "queue", name)
	}

	return nil
}

// PublishFIFO publishes a persistent JSON message to queueName.
func PublishFIFO(ctx context.Context, pub Publisher, queueName string, data []byte) error {
	return pub.Publish(ctx, queueName, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}

func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// HandleProcessingError moves a failed delivery to the retry queue, or to
// the dead letter queue once it was retried maxRetries times or when
// permanent is set. The delivery is acked once the copy is published and
// requeued if publishing fails.
func HandleProcessingError(ctx context.Context, pub Publisher, msg amqp091.Delivery, queueName string, permanent bool) {
	retries := retryCount(msg.Headers)

	if permanent || retries >= maxRetries {
		dlqName := queueName + "_dlq"
		logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries)
		err := pub.Publish(ctx, dlqName, amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      msg.Headers,
			DeliveryMode: amqp091.Persistent,
		})
		if err != nil {
			logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", err)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries + 1)

	retryName := queueName + "_retry"
	err := pub.Publish(ctx, retryName, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
