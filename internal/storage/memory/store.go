package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// orderRecord хранит заказ без развёрнутых товаров: только ссылки на них.
type orderRecord struct {
	order      domain.Order
	productIDs []int64
}

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	seq        int64
	createdAt  time.Time
	updatedAt  time.Time
}

// state — всё содержимое хранилища; транзакции работают с его копией.
type state struct {
	orders        map[int64]orderRecord
	products      map[int64]domain.Product
	outbox        map[string]*outboxRecord
	nextOrderID   int64
	nextProductID int64
	outboxSeq     int64
}

func newState() *state {
	return &state{
		orders:        make(map[int64]orderRecord),
		products:      make(map[int64]domain.Product),
		outbox:        make(map[string]*outboxRecord),
		nextOrderID:   1,
		nextProductID: 1,
	}
}

func (s *state) clone() *state {
	c := &state{
		orders:        make(map[int64]orderRecord, len(s.orders)),
		products:      make(map[int64]domain.Product, len(s.products)),
		outbox:        make(map[string]*outboxRecord, len(s.outbox)),
		nextOrderID:   s.nextOrderID,
		nextProductID: s.nextProductID,
		outboxSeq:     s.outboxSeq,
	}
	for id, rec := range s.orders {
		rec.productIDs = append([]int64(nil), rec.productIDs...)
		c.orders[id] = rec
	}
	for id, p := range s.products {
		c.products[id] = p
	}
	for id, rec := range s.outbox {
		cp := *rec
		c.outbox[id] = &cp
	}
	return c
}

// accessFn даёт репозиторию доступ к состоянию: под блокировкой Store
// или напрямую к черновику транзакции.
type accessFn func(write bool, fn func(st *state) error) error

// Store — in-memory хранилище заказов, товаров и outbox для локальной разработки и тестов.
type Store struct {
	mu sync.RWMutex
	st *state
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) access(write bool, fn func(st *state) error) error {
	if write {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	return fn(s.st)
}

// Orders возвращает репозиторий заказов вне транзакции.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepository{access: s.access}
}

// Products возвращает репозиторий товаров вне транзакции.
func (s *Store) Products() domain.ProductRepository {
	return &productRepository{access: s.access}
}

// Outbox возвращает outbox-репозиторий вне транзакции.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{access: s.access}
}

// WithinTx выполняет fn над копией состояния под эксклюзивной блокировкой.
// Копия подменяет состояние только при успешном завершении fn.
// Копируется всё состояние вместе с outbox, поэтому запись стоит O(размер хранилища):
// хранилище рассчитано на разработку и тесты.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	tx := &txView{st: draft}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.st = draft
	return nil
}

// txView — репозитории, работающие с черновиком состояния без блокировок.
type txView struct {
	st *state
}

func (t *txView) access(_ bool, fn func(st *state) error) error {
	return fn(t.st)
}

func (t *txView) Orders() domain.OrderRepository {
	return &orderRepository{access: t.access}
}

func (t *txView) Products() domain.ProductRepository {
	return &productRepository{access: t.access}
}

func (t *txView) Outbox() domain.OutboxRepository {
	return &outboxRepository{access: t.access}
}

func now() time.Time {
	return time.Now().UTC()
}

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*txView)(nil)
)
