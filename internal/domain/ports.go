package domain

import (
	"context"
	"encoding/json"
	"time"
)

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// Operation задаёт имена операций сервиса для метрик и логов.
type Operation string

const (
	OperationGetOrder        Operation = "get_order"
	OperationListOrders      Operation = "list_orders"
	OperationListOrdersPage  Operation = "list_orders_page"
	OperationGetOrderProduct Operation = "get_order_products"
	OperationCreateOrder     Operation = "create_order"
	OperationUpdateOrder     Operation = "update_order"
	OperationDeleteOrder     Operation = "delete_order"
	OperationGetProduct      Operation = "get_product"
	OperationListProducts    Operation = "list_products"
	OperationCreateProduct   Operation = "create_product"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// DeadLetter — тело сообщения, отправленного в DLQ после исчерпания попыток.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}
