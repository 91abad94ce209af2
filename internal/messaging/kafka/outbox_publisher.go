package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Envelope — формат сообщения, которое outbox публикует в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	// sourceTopic заполняется для DLQ: исходный topic уходит в заголовок.
	sourceTopic string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// NewDeadLetterPublisher создаёт паблишер для сообщений, исчерпавших попытки доставки.
func NewDeadLetterPublisher(producer *Producer, sourceTopic, dlqTopic string) domain.OutboxPublisher {
	if sourceTopic == "" {
		sourceTopic = TopicOrderEvents
	}
	if dlqTopic == "" {
		dlqTopic = TopicDeadLetterQueue
	}
	return &OutboxTopicPublisher{
		producer:    producer,
		topic:       dlqTopic,
		sourceTopic: sourceTopic,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	envelope := Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   time.Now().UTC(),
	}

	var headers []sarama.RecordHeader
	if p.sourceTopic != "" {
		headers = []sarama.RecordHeader{
			{Key: []byte(HeaderOriginalTopic), Value: []byte(p.sourceTopic)},
			{Key: []byte(HeaderEventType), Value: []byte(event.EventType)},
			{Key: []byte(HeaderFailedAt), Value: []byte(envelope.PublishedAt.Format(time.RFC3339))},
		}
	}

	return p.producer.publish(p.topic, key, envelope, headers)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
