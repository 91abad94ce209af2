package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	defaultClientID   = "shop-order-service"
	defaultMaxRetries = 5
)

// ErrProducerClosed возвращается при публикации через закрытый producer.
var ErrProducerClosed = errors.New("kafka producer is closed")

// Producer синхронно публикует JSON-сообщения: вызов возвращается только после подтверждения брокера.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry

	mu     sync.RWMutex
	closed bool
}

// ProducerOption настраивает Producer.
type ProducerOption func(*producerOptions)

type producerOptions struct {
	logger     *log.Entry
	maxRetries int
}

// WithProducerLogger задаёт логгер producer.
func WithProducerLogger(logger *log.Entry) ProducerOption {
	return func(o *producerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxRetries задаёт число повторов sarama на уровне отдельного сообщения.
func WithMaxRetries(n int) ProducerOption {
	return func(o *producerOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func buildProducerOptions(opts []ProducerOption) producerOptions {
	o := producerOptions{
		logger:     log.WithField("component", "kafka-producer"),
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewProducer подключается к брокерам и создаёт идемпотентный producer с acks=all.
func NewProducer(brokers []string, clientID string, opts ...ProducerOption) (*Producer, error) {
	brokers = normalizeBrokers(brokers)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	if strings.TrimSpace(clientID) == "" {
		clientID = defaultClientID
	}

	o := buildProducerOptions(opts)

	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = o.maxRetries
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	// Идемпотентность требует одного in-flight запроса на соединение.
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	sp, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer (brokers=%s): %w", strings.Join(brokers, ","), err)
	}

	o.logger.WithFields(log.Fields{"brokers": brokers, "client_id": clientID}).Info("kafka producer connected")
	return &Producer{producer: sp, logger: o.logger}, nil
}

func newProducer(sp sarama.SyncProducer, opts ...ProducerOption) *Producer {
	o := buildProducerOptions(opts)
	return &Producer{producer: sp, logger: o.logger}
}

func normalizeBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// PublishEvent сериализует event в JSON и отправляет его в topic с ключом партиционирования key.
func (p *Producer) PublishEvent(topic string, key string, event any) error {
	return p.publish(topic, key, event, nil)
}

func (p *Producer) publish(topic, key string, event any, headers []sarama.RecordHeader) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	fields := log.Fields{"topic": topic, "key": key}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(body),
		Headers:   headers,
		Timestamp: time.Now(),
	})
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	fields["partition"] = partition
	fields["offset"] = offset
	p.logger.WithFields(fields).Debug("kafka message sent")
	return nil
}

// Close закрывает producer; повторный вызов ничего не делает.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
