package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"eventrsvp/internal/domain"
)

const routingPrefix = "notification."

// RoutingKey is the topic a notification of kind is published under.
func RoutingKey(kind domain.NotificationKind) string {
	return routingPrefix + string(kind)
}

// RabbitMQConfig names the topic exchange and the durable queue bound to it.
type RabbitMQConfig struct {
	URL           string
	Exchange      string
	Queue         string
	NumWorkers    int
	PrefetchCount int
}

// RabbitMQ publishes notifications to a topic exchange and consumes them from a
// durable queue bound to every notification routing key.
type RabbitMQ struct {
	config RabbitMQConfig
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	workers sync.WaitGroup
	cancel  context.CancelFunc
}

func NewRabbitMQ(config RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 2
	}
	if config.PrefetchCount <= 0 {
		config.PrefetchCount = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &RabbitMQ{config: config, logger: logger}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *RabbitMQ) connect() error {
	conn, err := amqp.Dial(b.config.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(b.config.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(b.config.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(b.config.Queue, routingPrefix+"#", b.config.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("bind queue: %w", err)
	}
	b.conn = conn
	b.channel = ch
	return nil
}

func (b *RabbitMQ) ensureConnection() error {
	if b.conn == nil || b.conn.IsClosed() || b.channel == nil || b.channel.IsClosed() {
		b.logger.Warn("rabbitmq connection lost, reconnecting")
		return b.connect()
	}
	return nil
}

// Publish sends n as a persistent JSON message.
func (b *RabbitMQ) Publish(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureConnection(); err != nil {
		return err
	}
	err = b.channel.PublishWithContext(ctx,
		b.config.Exchange,
		RoutingKey(n.Kind),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    n.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Consume starts NumWorkers workers feeding deliveries to handler until ctx ends or Close is called.
func (b *RabbitMQ) Consume(ctx context.Context, handler domain.NotificationHandler) error {
	b.mu.Lock()
	if err := b.ensureConnection(); err != nil {
		b.mu.Unlock()
		return err
	}
	if err := b.channel.Qos(b.config.PrefetchCount, 0, false); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := b.channel.Consume(b.config.Queue, "", false, false, false, false, nil)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	for i := 0; i < b.config.NumWorkers; i++ {
		b.workers.Add(1)
		go b.startWorker(ctx, deliveries, handler, i+1)
	}
	b.logger.Info("notification consumer started", "queue", b.config.Queue, "workers", b.config.NumWorkers)
	return nil
}

func (b *RabbitMQ) startWorker(ctx context.Context, deliveries <-chan amqp.Delivery, handler domain.NotificationHandler, workerID int) {
	defer b.workers.Done()
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				b.logger.Info("notification deliveries closed", "worker", workerID)
				return
			}
			handleDelivery(ctx, d, handler, b.logger)
		case <-ctx.Done():
			return
		}
	}
}

// handleDelivery acks handled messages and rejects the rest without requeue.
func handleDelivery(ctx context.Context, d amqp.Delivery, handler domain.NotificationHandler, logger *slog.Logger) {
	var n domain.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		logger.Error("malformed notification", "routing_key", d.RoutingKey, "error", err)
		_ = d.Reject(false)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := handler.Handle(ctx, &n); err != nil {
		logger.Warn("notification delivery failed",
			"kind", n.Kind, "event_id", n.EventID, "attendee_id", n.AttendeeID, "error", err)
		_ = d.Reject(false)
		return
	}
	_ = d.Ack(false)
}

// Close stops the consumer workers and closes the connection.
func (b *RabbitMQ) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.workers.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		if err := b.channel.Close(); err != nil && err != amqp.ErrClosed {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil && err != amqp.ErrClosed {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	return nil
}
