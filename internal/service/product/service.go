package product

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// Service — операции каталога товаров.
type Service struct {
	products domain.ProductRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewService создаёт сервис каталога. logger и m могут быть nil.
func NewService(products domain.ProductRepository, logger *log.Entry, m *metrics.OrderMetrics) *Service {
	if logger == nil {
		logger = log.WithField("component", "product-service")
	}
	return &Service{
		products: products,
		logger:   logger,
		metrics:  m,
	}
}

// GetProductByID возвращает товар или ProductNotFoundError.
func (s *Service) GetProductByID(ctx context.Context, id int64) (product domain.Product, err error) {
	defer s.observe(domain.OperationGetProduct, id, time.Now(), &err)

	if id == 0 {
		return domain.Product{}, domain.ErrProductIDRequired
	}
	return s.products.FindByID(ctx, id)
}

// GetAllProducts возвращает весь каталог.
func (s *Service) GetAllProducts(ctx context.Context) (products []domain.Product, err error) {
	defer s.observe(domain.OperationListProducts, 0, time.Now(), &err)

	return s.products.ListAll(ctx)
}

// CreateProduct проверяет и сохраняет товар; ID назначает хранилище.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (created domain.Product, err error) {
	defer s.observe(domain.OperationCreateProduct, 0, time.Now(), &err)

	if err := domain.ValidateProduct(product); err != nil {
		return domain.Product{}, err
	}

	product.ID = 0
	product.CreatedAt = time.Time{}
	return s.products.Save(ctx, product)
}

func (s *Service) observe(op domain.Operation, productID int64, started time.Time, errp *error) {
	err := *errp
	s.metrics.ObserveOperation(string(op), started, err)
	if err == nil {
		return
	}

	entry := s.logger.WithError(err).WithField("operation", string(op))
	if productID != 0 {
		entry = entry.WithField("product_id", productID)
	}
	if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrValidation) || domain.IsNotFound(err) {
		entry.Info("product operation rejected")
		return
	}
	entry.Error("product operation failed")
}
