package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

// runtimeDependencies — инфраструктура, от которой зависят сервисы.
type runtimeDependencies struct {
	store domain.Store
	// ping проверяет доступность хранилища для health checks.
	ping    func(ctx context.Context) error
	closers []func() error

	producer *kafka.Producer
	worker   *outbox.Worker
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		deps.store = memory.NewStore()
		deps.ping = func(ctx context.Context) error { return ctx.Err() }
		logger.Info("используется in-memory хранилище")
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("миграции postgres применены")
		}
		deps.store = store
		deps.ping = store.Ping
		deps.closers = append(deps.closers, store.Close)
		logger.Info("используется postgres хранилище")
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}

	deps.initKafka(cfg, logger)
	return deps, nil
}

// initKafka поднимает producer и outbox worker. Kafka необязательна:
// при ошибке сервис продолжает работу без событий.
func (d *runtimeDependencies) initKafka(cfg Config, logger *log.Entry) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return
	}

	producer, err := kafka.NewProducer(brokers, cfg.KafkaClientID,
		kafka.WithProducerLogger(logger.WithField("component", "kafka-producer")))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return
	}

	d.producer = producer
	d.worker = outbox.NewWorker(
		d.store.Outbox(),
		kafka.NewOutboxPublisher(producer, cfg.OrderEventsTopic),
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithDLQPublisher(kafka.NewDeadLetterPublisher(producer, cfg.OrderEventsTopic, cfg.DLQTopic)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

// eventsEnabled сообщает, есть ли кому публиковать события из outbox.
func (d *runtimeDependencies) eventsEnabled() bool {
	return d.worker != nil
}

// outboxBacklog возвращает проверку, сигнализирующую о перерастании backlog.
func (d *runtimeDependencies) outboxBacklog(maxPending int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		stats, err := d.store.Outbox().Stats(ctx)
		if err != nil {
			return err
		}
		if stats.PendingCount > maxPending {
			return fmt.Errorf("outbox backlog %d exceeds %d", stats.PendingCount, maxPending)
		}
		return nil
	}
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			logger.Info("kafka producer closed")
		}
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}
}
