package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument — некорректный аргумент вызова (например, пустой ID).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOrderIDRequired — идентификатор заказа не передан.
	ErrOrderIDRequired = fmt.Errorf("%w: order id cannot be null", ErrInvalidArgument)
	// ErrProductIDRequired — идентификатор товара не передан.
	ErrProductIDRequired = fmt.Errorf("%w: product id cannot be null", ErrInvalidArgument)
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар не найден в репозитории.
	ErrProductNotFound = errors.New("product not found")
	// ErrRecordNotFound — ошибка уровня хранилища, когда выборка не вернула строк.
	ErrRecordNotFound = errors.New("record not found")
	// ErrValidation — заказ или товар не прошёл проверку полей.
	ErrValidation = errors.New("validation failed")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// OrderNotFoundError несёт идентификатор отсутствующего заказа.
type OrderNotFoundError struct {
	ID int64
}

// NewOrderNotFoundError создаёт ошибку отсутствующего заказа.
func NewOrderNotFoundError(id int64) error {
	return &OrderNotFoundError{ID: id}
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("Could not find order %d", e.ID)
}

// Is позволяет сравнивать ошибку с ErrOrderNotFound через errors.Is.
func (e *OrderNotFoundError) Is(target error) bool {
	return target == ErrOrderNotFound
}

// ProductNotFoundError несёт идентификатор отсутствующего товара.
type ProductNotFoundError struct {
	ID int64
}

// NewProductNotFoundError создаёт ошибку отсутствующего товара.
func NewProductNotFoundError(id int64) error {
	return &ProductNotFoundError{ID: id}
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Could not find product %d", e.ID)
}

// Is позволяет сравнивать ошибку с ErrProductNotFound через errors.Is.
func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound проверяет, означает ли ошибка отсутствие записи любого вида.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}
