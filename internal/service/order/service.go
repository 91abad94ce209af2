package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// Service реализует операции над заказами поверх транзакционного хранилища.
type Service struct {
	store         domain.Store
	logger        *log.Entry
	metrics       *metrics.OrderMetrics
	publishEvents bool
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics задаёт метрики сервиса; nil отключает их.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEvents включает запись событий заказа в outbox.
func WithEvents(enabled bool) Option {
	return func(s *Service) {
		s.publishEvents = enabled
	}
}

// NewService создаёт сервис заказов.
func NewService(store domain.Store, options ...Option) *Service {
	s := &Service{store: store}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "order-service")
	}
	return s
}

// GetOrderByID возвращает заказ по идентификатору.
func (s *Service) GetOrderByID(ctx context.Context, id int64) (order domain.Order, err error) {
	defer s.observe(domain.OperationGetOrder, id, time.Now(), &err)

	if id == 0 {
		return domain.Order{}, domain.ErrOrderIDRequired
	}

	order, err = s.store.Orders().FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, orderLookupError(id, err)
	}
	return order, nil
}

// GetAllOrders возвращает все заказы.
func (s *Service) GetAllOrders(ctx context.Context) (orders []domain.Order, err error) {
	defer s.observe(domain.OperationListOrders, 0, time.Now(), &err)

	return s.store.Orders().ListAll(ctx)
}

// GetOrdersPage возвращает страницу заказов; page отсчитывается от нуля.
func (s *Service) GetOrdersPage(ctx context.Context, page, size int) (result domain.Page[domain.Order], err error) {
	defer s.observe(domain.OperationListOrdersPage, 0, time.Now(), &err)

	if page < 0 {
		return domain.Page[domain.Order]{}, fmt.Errorf("%w: page index must not be less than zero", domain.ErrInvalidArgument)
	}
	if size < 1 {
		return domain.Page[domain.Order]{}, fmt.Errorf("%w: page size must not be less than one", domain.ErrInvalidArgument)
	}

	offset, err := domain.Offset(page, size)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	orders, total, err := s.store.Orders().ListPage(ctx, offset, size)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.NewPage(orders, page, size, total), nil
}

// GetProductListByID возвращает товары заказа. Отсутствие заказа не переводится
// в OrderNotFoundError: наружу уходит ошибка хранилища.
func (s *Service) GetProductListByID(ctx context.Context, id int64) (products []domain.Product, err error) {
	defer s.observe(domain.OperationGetOrderProduct, id, time.Now(), &err)

	if id == 0 {
		return nil, domain.ErrOrderIDRequired
	}
	return s.store.Orders().ProductListByOrderID(ctx, id)
}

// CreateOrder проверяет и сохраняет новый заказ; ID назначает хранилище.
func (s *Service) CreateOrder(ctx context.Context, order domain.Order) (created domain.Order, err error) {
	defer s.observe(domain.OperationCreateOrder, 0, time.Now(), &err)

	if err := domain.ValidateOrder(order); err != nil {
		return domain.Order{}, err
	}

	// Служебные поля назначает хранилище.
	order.ID = 0
	order.Version = 0
	order.CreatedAt = time.Time{}
	order.UpdatedAt = time.Time{}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		saved, err := tx.Orders().Save(ctx, order)
		if err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, kafka.EventTypeOrderCreated, saved); err != nil {
			return err
		}
		created = saved
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCreated()
	return created, nil
}

// UpdateOrder полностью заменяет статус, клиента, дату, адрес и список
// товаров заказа id. Остальные сохранённые поля не меняются.
func (s *Service) UpdateOrder(ctx context.Context, id int64, order domain.Order) (updated domain.Order, err error) {
	defer s.observe(domain.OperationUpdateOrder, id, time.Now(), &err)

	if id == 0 {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	if err := domain.ValidateOrder(order); err != nil {
		return domain.Order{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		stored, err := tx.Orders().FindByID(ctx, id)
		if err != nil {
			return orderLookupError(id, err)
		}

		stored.ApplyUpdate(order)

		saved, err := tx.Orders().Save(ctx, stored)
		if err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, kafka.EventTypeOrderUpdated, saved); err != nil {
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	return updated, nil
}

// DeleteOrder удаляет заказ id.
func (s *Service) DeleteOrder(ctx context.Context, id int64) (err error) {
	defer s.observe(domain.OperationDeleteOrder, id, time.Now(), &err)

	if id == 0 {
		return domain.ErrOrderIDRequired
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		stored, err := tx.Orders().FindByID(ctx, id)
		if err != nil {
			return orderLookupError(id, err)
		}
		if err := tx.Orders().Delete(ctx, stored); err != nil {
			return orderLookupError(id, err)
		}
		return s.enqueue(ctx, tx, kafka.EventTypeOrderDeleted, stored)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordOrderDeleted()
	return nil
}

func (s *Service) enqueue(ctx context.Context, tx domain.Tx, eventType kafka.EventType, order domain.Order) error {
	if !s.publishEvents {
		return nil
	}

	event := kafka.NewOrderEvent(eventType, order)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("enqueue %s event: %w", eventType, err)
	}
	return nil
}

// observe пишет метрики операции и логирует ошибку; ошибки клиента идут
// уровнем Info, остальные — Error.
func (s *Service) observe(op domain.Operation, orderID int64, started time.Time, errp *error) {
	err := *errp
	s.metrics.ObserveOperation(string(op), started, err)
	if err == nil {
		return
	}

	entry := s.logger.WithError(err).WithField("operation", string(op))
	if orderID != 0 {
		entry = entry.WithField("order_id", orderID)
	}

	if isClientError(err) {
		entry.Info("order operation rejected")
		return
	}
	entry.Error("order operation failed")
}

// orderLookupError переводит отсутствие заказа в OrderNotFoundError с его ID.
func orderLookupError(id int64, err error) error {
	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.NewOrderNotFoundError(id)
	}
	return err
}

func isClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrValidation) ||
		domain.IsNotFound(err) ||
		domain.IsVersionConflict(err)
}
