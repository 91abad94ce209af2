package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/app"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

const (
	envLogFormat = "SHOP_LOG_FORMAT"
	envLogLevel  = "SHOP_LOG_LEVEL"
	envDotEnv    = "SHOP_ENV_FILE"

	envHTTPAddr            = "SHOP_HTTP_ADDR"
	envGRPCAddr            = "SHOP_GRPC_ADDR"
	envMetricsAddr         = "SHOP_METRICS_ADDR"
	envStorageDriver       = "SHOP_STORAGE_DRIVER"
	envPostgresDSN         = "SHOP_POSTGRES_DSN"
	envPostgresAutoMigrate = "SHOP_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers        = "SHOP_KAFKA_BROKERS"
	envKafkaClientID       = "SHOP_KAFKA_CLIENT_ID"
	envOrderEventsTopic    = "SHOP_ORDER_EVENTS_TOPIC"
	envDLQTopic            = "SHOP_DLQ_TOPIC"
	envOutboxPollInterval  = "SHOP_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "SHOP_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "SHOP_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "SHOP_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending    = "SHOP_OUTBOX_MAX_PENDING"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) []string {
	var warnings []string

	if v, ok := lookup(envLogFormat); ok && strings.EqualFold(strings.TrimSpace(v), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level := log.InfoLevel
	if v, ok := lookup(envLogLevel); ok && strings.TrimSpace(v) != "" {
		parsed, err := log.ParseLevel(strings.TrimSpace(v))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using %s", envLogLevel, err, level))
		} else {
			level = parsed
		}
	}
	log.SetLevel(level)

	return warnings
}

// readConfigFromEnv формирует конфигурацию поверх DefaultConfig. Некорректные
// значения не прерывают запуск: остаётся значение по умолчанию, а причина
// возвращается предупреждением.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q: %v, using default", key, value, err))
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}
	integer := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaClientID, &cfg.KafkaClientID)
	str(envOrderEventsTopic, &cfg.OrderEventsTopic)
	str(envDLQTopic, &cfg.DLQTopic)

	positive := func(v int) bool { return v > 0 }
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, func(v time.Duration) bool { return v > 0 }, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
	integer(envOutboxMaxPending, &cfg.OutboxMaxPending, func(v int) bool { return v >= 0 }, "must be >= 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}

// loadDotEnv подхватывает .env, не перетирая уже заданные переменные окружения.
func loadDotEnv(lookup envLookup) error {
	path := ".env"
	if v, ok := lookup(envDotEnv); ok && strings.TrimSpace(v) != "" {
		path = strings.TrimSpace(v)
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Println(version.String())
		return
	}

	dotEnvErr := loadDotEnv(os.LookupEnv)
	warnings := setupLogger(os.LookupEnv)
	if dotEnvErr != nil {
		log.WithError(dotEnvErr).Warn("не удалось прочитать .env")
	}

	cfg, configWarnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range append(warnings, configWarnings...) {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka_enabled":  len(cfg.Brokers()) > 0,
	}).Info("запускаем OrderService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("OrderService остановлен")
}
