package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// ErrNotDeadLetter — сообщение в DLQ не содержит исходного события и не может быть переиграно.
var ErrNotDeadLetter = errors.New("message is not a dead letter")

// Replay — событие, восстановленное из DLQ для повторной публикации.
type Replay struct {
	Topic    string
	Key      string
	Envelope Envelope
	// Reason — ошибка, из-за которой событие попало в DLQ.
	Reason string
}

// DecodeDeadLetter восстанавливает исходное событие из сообщения DLQ.
// Целевой topic берётся из заголовка x-original-topic, иначе используется defaultTopic.
func DecodeDeadLetter(msg *sarama.ConsumerMessage, defaultTopic string) (Replay, error) {
	if msg == nil {
		return Replay{}, ErrNotDeadLetter
	}

	var outer Envelope
	if err := json.Unmarshal(msg.Value, &outer); err != nil {
		return Replay{}, fmt.Errorf("%w: decode envelope: %v", ErrNotDeadLetter, err)
	}

	var letter domain.DeadLetter
	if err := json.Unmarshal(outer.Payload, &letter); err != nil {
		return Replay{}, fmt.Errorf("%w: decode dead letter: %v", ErrNotDeadLetter, err)
	}
	if len(letter.Payload) == 0 || string(letter.Payload) == "null" {
		return Replay{}, fmt.Errorf("%w: original payload is empty", ErrNotDeadLetter)
	}

	topic := defaultTopic
	if original := headerValue(msg.Headers, HeaderOriginalTopic); original != "" {
		topic = original
	}

	replay := Replay{
		Topic:  topic,
		Reason: letter.PublishError,
		Envelope: Envelope{
			ID:            firstNonEmpty(letter.OutboxID, outer.ID),
			AggregateType: firstNonEmpty(letter.AggregateType, outer.AggregateType),
			AggregateID:   firstNonEmpty(letter.AggregateID, outer.AggregateID),
			EventType:     firstNonEmpty(letter.EventType, outer.EventType),
			Payload:       letter.Payload,
			PublishedAt:   time.Now().UTC(),
		},
	}
	replay.Key = firstNonEmpty(replay.Envelope.AggregateID, replay.Envelope.ID)

	return replay, nil
}

// Republish отправляет восстановленное событие в его исходный topic.
func (p *Producer) Republish(replay Replay) error {
	return p.PublishEvent(replay.Topic, replay.Key, replay.Envelope)
}

func headerValue(headers []*sarama.RecordHeader, key string) string {
	for _, h := range headers {
		if h != nil && string(h.Key) == key {
			return strings.TrimSpace(string(h.Value))
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
