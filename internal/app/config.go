package app

import (
	"fmt"
	"strings"
	"time"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
// Поля только скалярные: конфигурации можно сравнивать через ==.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает события.
	KafkaBrokers     string
	KafkaClientID    string
	OrderEventsTopic string
	DLQTopic         string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending — порог backlog, выше которого /healthz сообщает degraded; 0 отключает проверку.
	OutboxMaxPending int
}

// DefaultConfig возвращает базовую конфигурацию: in-memory хранилище без Kafka.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		KafkaClientID:       "shop-order-service",
		OrderEventsTopic:    "shop.order.events",
		DLQTopic:            "shop.order.dlq",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    100 * time.Millisecond,
		OutboxMaxPending:    1000,
	}
}

// Brokers разбирает KafkaBrokers, отбрасывая пустые элементы.
func (c Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// Validate проверяет согласованность настроек до запуска серверов.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("postgres dsn is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.StorageDriver)
	}

	if len(c.Brokers()) > 0 {
		if c.OrderEventsTopic == "" {
			return fmt.Errorf("order events topic is required when kafka is enabled")
		}
		if c.DLQTopic == "" {
			return fmt.Errorf("dlq topic is required when kafka is enabled")
		}
	}
	return nil
}
