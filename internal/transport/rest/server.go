package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// OrderService — операции над заказами, которые обслуживает REST API.
type OrderService interface {
	GetOrderByID(ctx context.Context, id int64) (domain.Order, error)
	GetAllOrders(ctx context.Context) ([]domain.Order, error)
	GetOrdersPage(ctx context.Context, page, size int) (domain.Page[domain.Order], error)
	GetProductListByID(ctx context.Context, id int64) ([]domain.Product, error)
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	UpdateOrder(ctx context.Context, id int64, order domain.Order) (domain.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// ProductService — операции каталога, которые обслуживает REST API.
type ProductService interface {
	GetProductByID(ctx context.Context, id int64) (domain.Product, error)
	GetAllProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}

// Server — HTTP API заказов и каталога.
type Server struct {
	e        *echo.Echo
	orders   OrderService
	products ProductService
	logger   *log.Entry
	metrics  *metrics.HTTPMetrics
}

// NewServer собирает echo-роутер со всеми маршрутами и middleware.
// logger и m могут быть nil.
func NewServer(orders OrderService, products ProductService, logger *log.Entry, m *metrics.HTTPMetrics) *Server {
	if logger == nil {
		logger = log.WithField("component", "rest")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		e:        e,
		orders:   orders,
		products: products,
		logger:   logger,
		metrics:  m,
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.observeRequests)
	e.Use(middleware.Recover())

	api := e.Group("/api/v1")

	api.GET("/orders", s.listOrders)
	api.GET("/orders/:id", s.getOrder)
	api.GET("/orders/:id/products", s.getOrderProducts)
	api.POST("/orders", s.createOrder)
	api.PUT("/orders/:id", s.updateOrder)
	api.DELETE("/orders/:id", s.deleteOrder)

	api.GET("/products", s.listProducts)
	api.GET("/products/:id", s.getProduct)
	api.POST("/products", s.createProduct)

	return s
}

// Handler возвращает http.Handler API.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start слушает addr до вызова Shutdown. Штатная остановка не считается ошибкой.
func (s *Server) Start(addr string) error {
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно завершает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
