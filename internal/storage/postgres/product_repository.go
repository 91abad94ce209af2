package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productRepository struct {
	q querier
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return store.Products()
}

func (r *productRepository) FindByID(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	p, err := scanProduct(r.q.QueryRowContext(ctx, `
		SELECT id, name, price_minor, currency, created_at
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NewProductNotFoundError(id)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return p, nil
}

func (r *productRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, price_minor, currency, created_at
		FROM products
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return result, nil
}

func (r *productRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	var err error
	if product.ID == 0 {
		err = r.q.QueryRowContext(ctx, `
			INSERT INTO products (name, price_minor, currency, created_at)
			VALUES ($1,$2,$3,$4)
			RETURNING id, created_at
		`, product.Name, product.PriceMinor, product.Currency, product.CreatedAt).
			Scan(&product.ID, &product.CreatedAt)
	} else {
		// created_at существующей записи не перезаписывается.
		err = r.q.QueryRowContext(ctx, `
			INSERT INTO products (id, name, price_minor, currency, created_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    price_minor = EXCLUDED.price_minor,
			    currency = EXCLUDED.currency
			RETURNING created_at
		`, product.ID, product.Name, product.PriceMinor, product.Currency, product.CreatedAt).
			Scan(&product.CreatedAt)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("save product: %w", err)
	}

	product.CreatedAt = product.CreatedAt.UTC()
	return product, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.PriceMinor, &p.Currency, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
