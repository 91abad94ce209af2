package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRepository — простое in-memory хранилище для transactional outbox.
type outboxRepository struct {
	access accessFn
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его идентификатор.
func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxMessage{}, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	err := r.access(true, func(st *state) error {
		ts := now()
		st.outboxSeq++
		st.outbox[msg.ID] = &outboxRecord{
			msg:       msg,
			status:    outboxStatusPending,
			seq:       st.outboxSeq,
			createdAt: ts,
			updatedAt: ts,
		}
		return nil
	})
	return msg, err
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке постановки.
func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	var result []domain.OutboxMessage
	err := r.access(false, func(st *state) error {
		pending := st.pendingRecords()
		if len(pending) > limit {
			pending = pending[:limit]
		}
		result = make([]domain.OutboxMessage, 0, len(pending))
		for _, rec := range pending {
			result = append(result, rec.msg)
		}
		return nil
	})
	return result, err
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxStats{}, err
	}

	var stats domain.OutboxStats
	err := r.access(false, func(st *state) error {
		pending := st.pendingRecords()
		stats.PendingCount = len(pending)
		if len(pending) > 0 {
			stats.OldestPendingAt = pending[0].createdAt
		}
		return nil
	})
	return stats, err
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusFailed)
}

func (r *outboxRepository) markStatus(ctx context.Context, id, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.access(true, func(st *state) error {
		record, ok := st.outbox[id]
		if !ok {
			return domain.ErrOutboxPublish
		}
		record.status = status
		record.attemptCnt++
		record.updatedAt = now()
		return nil
	})
}

func (s *state) pendingRecords() []*outboxRecord {
	pending := make([]*outboxRecord, 0, len(s.outbox))
	for _, rec := range s.outbox {
		if rec.status == outboxStatusPending {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	return pending
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
