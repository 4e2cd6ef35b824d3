// Package broker carries notifications from the services to their handler
// outside the request path.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"eventrsvp/internal/domain"
)

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

// Queue is an in-process bounded notification queue drained by a worker pool.
type Queue struct {
	handler    domain.NotificationHandler
	logger     *slog.Logger
	messages   chan *domain.Notification
	numWorkers int
	timeout    time.Duration

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
}

// QueueConfig sizes the queue and its worker pool.
type QueueConfig struct {
	Size           int
	NumWorkers     int
	HandlerTimeout time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Size:           256,
		NumWorkers:     2,
		HandlerTimeout: 30 * time.Second,
	}
}

func NewQueue(handler domain.NotificationHandler, config QueueConfig, logger *slog.Logger) *Queue {
	def := DefaultQueueConfig()
	if config.Size <= 0 {
		config.Size = def.Size
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = def.NumWorkers
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = def.HandlerTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		handler:    handler,
		logger:     logger,
		messages:   make(chan *domain.Notification, config.Size),
		numWorkers: config.NumWorkers,
		timeout:    config.HandlerTimeout,
	}
}

// Start launches the workers. They exit once Close has drained the queue.
func (q *Queue) Start() {
	for i := 0; i < q.numWorkers; i++ {
		q.workers.Add(1)
		go q.startWorker(i + 1)
	}
	q.logger.Info("notification queue started", "workers", q.numWorkers, "size", cap(q.messages))
}

func (q *Queue) startWorker(workerID int) {
	defer q.workers.Done()
	for n := range q.messages {
		q.process(workerID, n)
	}
}

func (q *Queue) process(workerID int, n *domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("notification handler panicked", "worker", workerID, "kind", n.Kind, "panic", r)
		}
	}()
	if err := q.handler.Handle(ctx, n); err != nil {
		q.logger.Warn("notification delivery failed",
			"worker", workerID, "kind", n.Kind, "event_id", n.EventID, "attendee_id", n.AttendeeID, "error", err)
	}
}

// Publish enqueues n without blocking. A full queue drops n.
func (q *Queue) Publish(ctx context.Context, n *domain.Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.messages <- n:
		return nil
	default:
		q.logger.Warn("notification dropped", "kind", n.Kind, "event_id", n.EventID, "attendee_id", n.AttendeeID)
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for queued ones to be handled
// or for ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.messages)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
