package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productRepository struct {
	access accessFn
}

// FindByID возвращает товар или ProductNotFoundError.
func (r *productRepository) FindByID(ctx context.Context, id int64) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	var product domain.Product
	err := r.access(false, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NewProductNotFoundError(id)
		}
		product = p
		return nil
	})
	return product, err
}

// ListAll возвращает все товары по возрастанию ID.
func (r *productRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []domain.Product
	err := r.access(false, func(st *state) error {
		result = make([]domain.Product, 0, len(st.products))
		for _, p := range st.products {
			result = append(result, p)
		}
		sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
		return nil
	})
	return result, err
}

// Save добавляет товар; для ID == 0 идентификатор назначается автоматически.
func (r *productRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	err := r.access(true, func(st *state) error {
		if product.ID == 0 {
			product.ID = st.nextProductID
		}
		if product.ID >= st.nextProductID {
			st.nextProductID = product.ID + 1
		}
		if existing, ok := st.products[product.ID]; ok {
			product.CreatedAt = existing.CreatedAt
		} else if product.CreatedAt.IsZero() {
			product.CreatedAt = now()
		}
		st.products[product.ID] = product
		return nil
	})
	return product, err
}

var _ domain.ProductRepository = (*productRepository)(nil)
