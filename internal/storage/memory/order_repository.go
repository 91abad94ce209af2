package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository.
type orderRepository struct {
	access accessFn
}

// FindByID возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepository) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err := r.access(false, func(st *state) error {
		rec, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		order = st.resolve(rec)
		return nil
	})
	return order, err
}

// ListAll возвращает все заказы по возрастанию ID (порядок вставки).
func (r *orderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []domain.Order
	err := r.access(false, func(st *state) error {
		result = st.sortedOrders()
		return nil
	})
	return result, err
}

// ListPage возвращает срез заказов [offset, offset+limit) и их общее количество.
func (r *orderRepository) ListPage(ctx context.Context, offset, limit int) ([]domain.Order, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if offset < 0 || limit <= 0 {
		return nil, 0, fmt.Errorf("invalid page window offset=%d limit=%d", offset, limit)
	}

	var (
		result []domain.Order
		total  int64
	)
	err := r.access(false, func(st *state) error {
		all := st.sortedOrders()
		total = int64(len(all))
		if offset >= len(all) {
			result = []domain.Order{}
			return nil
		}
		result = all[offset : offset+min(limit, len(all)-offset)]
		return nil
	})
	return result, total, err
}

// Save создаёт новый заказ или перезаписывает существующий, проверяя версию (optimistic locking).
func (r *orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	var saved domain.Order
	err := r.access(true, func(st *state) error {
		productIDs := order.ProductIDs()
		for _, pid := range productIDs {
			if _, ok := st.products[pid]; !ok {
				return domain.NewProductNotFoundError(pid)
			}
		}

		ts := now()
		if order.ID == 0 {
			order.ID = st.nextOrderID
			st.nextOrderID++
			order.Version = 0
			order.CreatedAt = ts
			order.UpdatedAt = ts
		} else {
			current, ok := st.orders[order.ID]
			if !ok {
				return domain.ErrOrderNotFound
			}
			if current.order.Version != order.Version {
				return domain.ErrOrderVersionConflict
			}
			// Инкрементируем версию перед сохранением.
			order.Version++
			order.CreatedAt = current.order.CreatedAt
			order.UpdatedAt = ts
		}

		rec := orderRecord{order: order, productIDs: productIDs}
		rec.order.Products = nil
		st.orders[order.ID] = rec
		saved = st.resolve(rec)
		return nil
	})
	return saved, err
}

// Delete удаляет заказ или возвращает ErrOrderNotFound.
func (r *orderRepository) Delete(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.access(true, func(st *state) error {
		if _, ok := st.orders[order.ID]; !ok {
			return domain.ErrOrderNotFound
		}
		delete(st.orders, order.ID)
		return nil
	})
}

// ProductListByOrderID возвращает товары заказа в порядке добавления.
func (r *orderRepository) ProductListByOrderID(ctx context.Context, id int64) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var products []domain.Product
	err := r.access(false, func(st *state) error {
		rec, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("select products of order %d: %w", id, domain.ErrRecordNotFound)
		}
		products = st.resolve(rec).Products
		return nil
	})
	return products, err
}

// resolve разворачивает ссылки заказа в товары каталога.
func (s *state) resolve(rec orderRecord) domain.Order {
	order := rec.order
	order.Products = make([]domain.Product, 0, len(rec.productIDs))
	for _, pid := range rec.productIDs {
		p, ok := s.products[pid]
		if !ok {
			p = domain.Product{ID: pid}
		}
		order.Products = append(order.Products, p)
	}
	return order
}

func (s *state) sortedOrders() []domain.Order {
	ids := make([]int64, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.resolve(s.orders[id]))
	}
	return result
}

var _ domain.OrderRepository = (*orderRepository)(nil)
