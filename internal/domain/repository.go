package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// FindByID возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	FindByID(ctx context.Context, id int64) (Order, error)
	// ListAll возвращает все заказы в порядке вставки.
	ListAll(ctx context.Context) ([]Order, error)
	// ListPage возвращает limit заказов начиная с offset и общее число заказов.
	ListPage(ctx context.Context, offset, limit int) ([]Order, int64, error)
	// Save создаёт заказ (ID == 0) либо обновляет существующий с учётом optimistic locking.
	// Ссылки на несуществующие товары дают ProductNotFoundError.
	Save(ctx context.Context, order Order) (Order, error)
	// Delete удаляет заказ; ErrOrderNotFound, если удалять нечего.
	Delete(ctx context.Context, order Order) error
	// ProductListByOrderID возвращает товары заказа.
	// Для отсутствующего заказа возвращается ошибка, обёрнутая в ErrRecordNotFound.
	ProductListByOrderID(ctx context.Context, id int64) ([]Product, error)
}

// ProductRepository описывает требования к каталогу товаров.
type ProductRepository interface {
	// FindByID возвращает товар или ProductNotFoundError.
	FindByID(ctx context.Context, id int64) (Product, error)
	// ListAll возвращает все товары по возрастанию ID.
	ListAll(ctx context.Context) ([]Product, error)
	// Save сохраняет новый товар и назначает ему ID.
	Save(ctx context.Context, product Product) (Product, error)
}

// Tx предоставляет репозитории, привязанные к одной транзакции.
type Tx interface {
	Orders() OrderRepository
	Products() ProductRepository
	Outbox() OutboxRepository
}

// Store — хранилище с поддержкой транзакций.
type Store interface {
	Tx
	// WithinTx выполняет fn в одной транзакции: фиксирует изменения, если fn
	// вернула nil, иначе откатывает их и возвращает ошибку fn.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
