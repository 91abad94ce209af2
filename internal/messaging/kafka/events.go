package kafka

import (
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderCreated EventType = "order.created"
	EventTypeOrderUpdated EventType = "order.updated"
	EventTypeOrderDeleted EventType = "order.deleted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "shop.order.events"
	TopicDeadLetterQueue = "shop.order.dlq"
)

// Kafka headers сообщений, ушедших в DLQ
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderEventType     = "x-event-type"
	HeaderFailedAt      = "x-failed-at"
)

// AggregateOrder — тип агрегата в outbox-сообщениях о заказах.
const AggregateOrder = "order"

// OrderEvent — полезная нагрузка событий жизненного цикла заказа.
type OrderEvent struct {
	EventType  EventType `json:"event_type"`
	OrderID    int64     `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	ProductIDs []int64   `json:"product_ids,omitempty"`
	Version    int64     `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewOrderEvent создает событие по текущему состоянию заказа
func NewOrderEvent(eventType EventType, order domain.Order) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		ProductIDs: order.ProductIDs(),
		Version:    order.Version,
		Timestamp:  time.Now().UTC(),
	}
}

// Key возвращает ключ партиционирования: события одного заказа идут в одну партицию.
func (e *OrderEvent) Key() string {
	return strconv.FormatInt(e.OrderID, 10)
}
