package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

// Worker переносит события заказов из outbox в брокер: pending → sent,
// а после исчерпания попыток pending → failed с копией в DLQ.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	logger    *log.Entry
	metrics   *metrics.OutboxMetrics

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics задаёт метрики воркера.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithDLQPublisher задаёт publisher для сообщений, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlq = publisher }
}

// WithPollInterval задаёт период опроса outbox; неположительное значение игнорируется.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithBatchSize задаёт максимальное число сообщений за один цикл.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithMaxAttempts задаёт число попыток публикации одного сообщения.
func WithMaxAttempts(attempts int) Option {
	return func(w *Worker) {
		if attempts > 0 {
			w.maxAttempts = attempts
		}
	}
}

// WithRetryBaseDelay задаёт задержку перед второй попыткой; дальше она удваивается. 0 отключает паузы.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) { w.retryBaseDelay = max(delay, 0) }
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		logger:         log.WithField("component", "outbox-worker"),
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(w)
	}
	if w.metrics == nil {
		w.metrics = metrics.NewOutboxMetrics()
	}
	return w
}

// BatchResult — итог одного цикла ProcessOnce.
type BatchResult struct {
	Pulled       int
	Sent         int
	Failed       int
	DeadLettered int
}

// Run опрашивает outbox с периодом pollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	w.logger.WithFields(log.Fields{
		"poll_interval": w.pollInterval.String(),
		"batch_size":    w.batchSize,
		"max_attempts":  w.maxAttempts,
		"dlq_enabled":   w.dlq != nil,
	}).Info("outbox worker started")
	defer w.logger.Info("outbox worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce публикует одну пачку pending-сообщений в порядке их появления.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var result BatchResult
	if ctx.Err() != nil {
		return result
	}

	w.refreshBacklog(ctx)
	defer func() {
		if result.Pulled > 0 {
			w.refreshBacklog(ctx)
		}
	}()

	batch, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return result
	}
	result.Pulled = len(batch)

	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}
		fields := log.Fields{"outbox_id": msg.ID, "event_type": msg.EventType, "aggregate_id": msg.AggregateID}

		publishErr := w.publishWithRetry(ctx, msg)
		if publishErr == nil {
			if err := w.repo.MarkSent(ctx, msg.ID); err != nil {
				w.logger.WithError(err).WithFields(fields).Warn("failed to mark outbox as sent")
			}
			result.Sent++
			w.logger.WithFields(fields).Debug("outbox message published")
			continue
		}
		if ctx.Err() != nil {
			// Сообщение остаётся pending и будет опубликовано после рестарта.
			break
		}

		result.Failed++
		w.metrics.RecordPublish(metrics.PublishFailed)
		w.logger.WithError(publishErr).WithFields(fields).Error("outbox publish failed after retries")
		if w.deadLetter(msg, publishErr, fields) {
			result.DeadLettered++
		}
		if err := w.repo.MarkFailed(ctx, msg.ID); err != nil {
			w.logger.WithError(err).WithFields(fields).Warn("failed to mark outbox as failed")
		}
	}

	if result.Pulled > 0 {
		w.logger.WithFields(log.Fields{
			"pulled":        result.Pulled,
			"sent":          result.Sent,
			"failed":        result.Failed,
			"dead_lettered": result.DeadLettered,
		}).Debug("outbox batch processed")
	}
	return result
}

func (w *Worker) publishWithRetry(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, w.retryBackoff(attempt-1)); err != nil {
				return err
			}
		}

		if lastErr = w.publisher.Publish(msg); lastErr == nil {
			w.metrics.RecordPublish(metrics.PublishSent)
			return nil
		}
		w.metrics.RecordPublish(metrics.PublishRetryError)
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.maxAttempts, lastErr)
}

// retryBackoff возвращает паузу после attempt-й неудачной попытки: base * 2^(attempt-1).
func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 || attempt < 1 {
		return 0
	}
	shift := attempt - 1
	if shift >= 62 || w.retryBaseDelay > time.Duration(math.MaxInt64>>shift) {
		return time.Duration(math.MaxInt64)
	}
	return w.retryBaseDelay << shift
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// deadLetter отправляет копию сообщения в DLQ и сообщает, удалось ли это.
func (w *Worker) deadLetter(msg domain.OutboxMessage, publishErr error, fields log.Fields) bool {
	if w.dlq == nil {
		return false
	}

	body, err := json.Marshal(domain.DeadLetter{
		OutboxID:       msg.ID,
		AggregateType:  msg.AggregateType,
		AggregateID:    msg.AggregateID,
		EventType:      msg.EventType,
		Payload:        json.RawMessage(msg.Payload),
		PublishError:   publishErr.Error(),
		DLQPublishedAt: time.Now().UTC(),
	})
	if err == nil {
		letter := msg
		letter.Payload = body
		err = w.dlq.Publish(letter)
	}
	if err != nil {
		w.metrics.RecordPublish(metrics.PublishDLQFailed)
		w.logger.WithError(err).WithFields(fields).Warn("failed to publish to DLQ")
		return false
	}

	w.metrics.RecordPublish(metrics.PublishDLQ)
	return true
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	w.metrics.SetBacklog(stats.PendingCount, stats.OldestPendingAt)
}
