package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	orderColumns = `id, status, customer_id, order_date, address, version, created_at, updated_at`
)

type orderRepository struct {
	q querier
	// db задан вне транзакции: многошаговые записи открывают собственную транзакцию.
	db *sql.DB
	// lockRows добавляет FOR UPDATE к чтению заказа внутри транзакции.
	lockRows bool
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return store.Orders()
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if r.lockRows {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	products, err := loadProducts(ctx, r.q, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Products = products

	return order, nil
}

func (r *orderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id ASC`)
}

func (r *orderRepository) ListPage(ctx context.Context, offset, limit int) ([]domain.Order, int64, error) {
	if offset < 0 || limit <= 0 {
		return nil, 0, fmt.Errorf("invalid page window offset=%d limit=%d", offset, limit)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	orders, err := r.listOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var saved domain.Order
	err := r.write(ctx, func(q querier) error {
		productIDs := order.ProductIDs()
		if err := ensureProductsExist(ctx, q, productIDs); err != nil {
			return err
		}

		var err error
		if order.ID == 0 {
			saved, err = insertOrder(ctx, q, order)
		} else {
			saved, err = updateOrder(ctx, q, order)
		}
		if err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM order_products WHERE order_id = $1`, saved.ID); err != nil {
			return fmt.Errorf("clear order products: %w", err)
		}
		for pos, pid := range productIDs {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO order_products (order_id, product_id, position)
				VALUES ($1, $2, $3)
			`, saved.ID, pid, pos); err != nil {
				if isForeignKeyViolation(err) {
					return domain.NewProductNotFoundError(pid)
				}
				return fmt.Errorf("insert order product: %w", err)
			}
		}

		products, err := loadProducts(ctx, q, saved.ID)
		if err != nil {
			return err
		}
		saved.Products = products
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	return saved, nil
}

func (r *orderRepository) Delete(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, order.ID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

func (r *orderRepository) ProductListByOrderID(ctx context.Context, id int64) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	exists, err := orderExists(ctx, r.q, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("select products of order %d: %w", id, domain.ErrRecordNotFound)
	}

	return loadProducts(ctx, r.q, id)
}

// write выполняет многошаговую запись атомарно: в текущей транзакции
// либо в новой, если репозиторий работает в autocommit-режиме.
func (r *orderRepository) write(ctx context.Context, fn func(q querier) error) (err error) {
	if r.db == nil {
		return fn(r.q)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order: %w", err)
	}
	return nil
}

func (r *orderRepository) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	// Закрываем курсор до загрузки товаров: внутри транзакции соединение одно.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close order rows: %w", err)
	}

	for i := range orders {
		products, err := loadProducts(ctx, r.q, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Products = products
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	if err := row.Scan(
		&order.ID, &status, &order.CustomerID, &order.OrderDate,
		&order.Address, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.OrderDate = order.OrderDate.UTC()
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func insertOrder(ctx context.Context, q querier, order domain.Order) (domain.Order, error) {
	now := time.Now().UTC()
	err := q.QueryRowContext(ctx, `
		INSERT INTO orders (
			status, customer_id, order_date, address, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,0,$5,$5)
		RETURNING id, version, created_at, updated_at
	`,
		string(order.Status), order.CustomerID, order.OrderDate, order.Address, now,
	).Scan(&order.ID, &order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, domain.ErrOrderVersionConflict
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return order, nil
}

func updateOrder(ctx context.Context, q querier, order domain.Order) (domain.Order, error) {
	err := q.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $1,
		    customer_id = $2,
		    order_date = $3,
		    address = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
		RETURNING version, created_at, updated_at
	`,
		string(order.Status),
		order.CustomerID,
		order.OrderDate,
		order.Address,
		time.Now().UTC(),
		order.ID,
		order.Version,
	).Scan(&order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	exists, existsErr := orderExists(ctx, q, order.ID)
	if existsErr != nil {
		return domain.Order{}, existsErr
	}
	if !exists {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return domain.Order{}, domain.ErrOrderVersionConflict
}

func loadProducts(ctx context.Context, q querier, orderID int64) ([]domain.Product, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.name, p.price_minor, p.currency, p.created_at
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		WHERE op.order_id = $1
		ORDER BY op.position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order products: %w", err)
	}

	return products, nil
}

func ensureProductsExist(ctx context.Context, q querier, ids []int64) error {
	for _, id := range ids {
		var exists bool
		if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check product exists: %w", err)
		}
		if !exists {
			return domain.NewProductNotFoundError(id)
		}
	}
	return nil
}

func orderExists(ctx context.Context, q querier, orderID int64) (bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
