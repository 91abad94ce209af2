package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func TestOutboxRepository_EnqueuePullAndMark(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Outbox()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order", AggregateID: "1", EventType: "order.created"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated outbox id")
	}
	second, err := repo.Enqueue(ctx, domain.OutboxMessage{ID: "fixed", AggregateType: "order", AggregateID: "2", EventType: "order.deleted"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("unexpected pending order: %+v", pending)
	}

	limited, err := repo.PullPending(ctx, 1)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 message with limit, got %d", len(limited))
	}

	if err := repo.MarkSent(ctx, first.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, second.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected empty backlog, got %+v", stats)
	}
}

func TestOutboxRepository_MarkUnknown(t *testing.T) {
	repo := memory.NewStore().Outbox()
	if err := repo.MarkSent(context.Background(), "missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}
}
