package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в магазине.
type OrderStatus string

const (
	// OrderStatusPending — заказ оформлен, оплата ещё не поступила.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid — оплата подтверждена.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ получен клиентом.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled — заказ отменён.
	OrderStatusCanceled OrderStatus = "canceled"
)

// IsValid сообщает, известен ли статус.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// Order агрегирует состояние заказа и ссылки на товары.
//
// ID назначается хранилищем; нулевое значение означает, что заказ ещё не сохранён.
// Version, CreatedAt и UpdatedAt поддерживаются хранилищем и не входят
// в набор полей, которые перезаписывает обновление заказа.
type Order struct {
	ID         int64       `json:"id"`
	Status     OrderStatus `json:"status" validate:"required,order_status"`
	CustomerID string      `json:"customerId" validate:"required,max=64"`
	OrderDate  time.Time   `json:"orderDate"`
	Address    string      `json:"address" validate:"required,max=512"`
	Products   []Product   `json:"productList" validate:"required,min=1"`
	Version    int64       `json:"version"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// ApplyUpdate перезаписывает изменяемые поля заказа значениями из updated.
// Остальные поля (ID, версия, служебные метки времени) не трогаются.
func (o *Order) ApplyUpdate(updated Order) {
	o.Status = updated.Status
	o.CustomerID = updated.CustomerID
	o.OrderDate = updated.OrderDate
	o.Address = updated.Address
	o.Products = append([]Product(nil), updated.Products...)
}

// ProductIDs возвращает идентификаторы товаров заказа в исходном порядке.
func (o Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Products))
	for _, p := range o.Products {
		ids = append(ids, p.ID)
	}
	return ids
}
