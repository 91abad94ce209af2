package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

type fakeClient struct {
	partitions []int32
	oldest     map[int32]int64
	newest     map[int32]int64
}

func (c *fakeClient) Partitions(string) ([]int32, error) { return c.partitions, nil }

func (c *fakeClient) GetOffset(_ string, partition int32, at int64) (int64, error) {
	if at == sarama.OffsetOldest {
		return c.oldest[partition], nil
	}
	return c.newest[partition], nil
}

type fakePartition struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func (p *fakePartition) Messages() <-chan *sarama.ConsumerMessage { return p.messages }
func (p *fakePartition) Errors() <-chan *sarama.ConsumerError     { return p.errors }
func (p *fakePartition) Close() error {
	p.closed = true
	return nil
}

type fakeSource struct {
	byPartition map[int32]*fakePartition
}

func (s *fakeSource) ConsumePartition(_ string, partition int32, _ int64) (partitionConsumer, error) {
	pc, ok := s.byPartition[partition]
	if !ok {
		return nil, errors.New("unknown partition")
	}
	return pc, nil
}

type fakeRepublisher struct {
	replays []kafka.Replay
	err     error
}

func (r *fakeRepublisher) Republish(replay kafka.Replay) error {
	if r.err != nil {
		return r.err
	}
	r.replays = append(r.replays, replay)
	return nil
}

func deadLetterMessage(t *testing.T, partition int32, offset int64, orderID string) *sarama.ConsumerMessage {
	t.Helper()

	letter, err := json.Marshal(domain.DeadLetter{
		OutboxID:     "out-" + orderID,
		AggregateID:  orderID,
		EventType:    "order.updated",
		Payload:      json.RawMessage(`{"order_id":` + orderID + `}`),
		PublishError: "timeout",
	})
	if err != nil {
		t.Fatalf("marshal letter: %v", err)
	}
	value, err := json.Marshal(kafka.Envelope{ID: "out-" + orderID, AggregateID: orderID, Payload: letter})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &sarama.ConsumerMessage{Partition: partition, Offset: offset, Value: value}
}

func newFakePartition(msgs ...*sarama.ConsumerMessage) *fakePartition {
	pc := &fakePartition{
		messages: make(chan *sarama.ConsumerMessage, len(msgs)),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	for _, msg := range msgs {
		pc.messages <- msg
	}
	return pc
}

func testConfig(execute bool) config {
	return config{
		brokers:     []string{"localhost:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderEvents,
		limit:       10,
		execute:     execute,
		idleTimeout: 200 * time.Millisecond,
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"-execute", "-limit=5"}, func(key string) (string, bool) {
		if key == envKafkaBrokers {
			return " broker-1:9092, ,broker-2:9092 ", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if len(cfg.brokers) != 2 || cfg.brokers[0] != "broker-1:9092" || cfg.brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", cfg.brokers)
	}
	if !cfg.execute || cfg.limit != 5 || cfg.sourceTopic != kafka.TopicDeadLetterQueue {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	noEnv := func(string) (string, bool) { return "", false }
	invalid := [][]string{
		{},
		{"-brokers=b:9092", "-limit=0"},
		{"-brokers=b:9092", "-idle-timeout=0s"},
		{"-brokers=b:9092", "-source-topic= "},
	}
	for _, args := range invalid {
		if _, err := parseConfig(args, noEnv); err == nil {
			t.Fatalf("expected error for args %v", args)
		}
	}
}

func TestReplay_ExecuteRepublishesAndSkipsGarbage(t *testing.T) {
	p0 := newFakePartition(
		deadLetterMessage(t, 0, 0, "1"),
		&sarama.ConsumerMessage{Partition: 0, Offset: 1, Value: []byte("garbage")},
	)
	p1 := newFakePartition(deadLetterMessage(t, 1, 5, "2"))

	client := &fakeClient{
		partitions: []int32{1, 0},
		oldest:     map[int32]int64{0: 0, 1: 5},
		newest:     map[int32]int64{0: 2, 1: 6},
	}
	publisher := &fakeRepublisher{}

	stats, err := replay(context.Background(), testConfig(true), client, &fakeSource{byPartition: map[int32]*fakePartition{0: p0, 1: p1}}, publisher)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if stats != (replayStats{processed: 3, replayed: 2, skipped: 1}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(publisher.replays) != 2 || publisher.replays[0].Key != "1" || publisher.replays[1].Key != "2" {
		t.Fatalf("unexpected replays: %+v", publisher.replays)
	}
	if publisher.replays[0].Topic != kafka.TopicOrderEvents {
		t.Fatalf("expected fallback topic, got %s", publisher.replays[0].Topic)
	}
	if !p0.closed || !p1.closed {
		t.Fatal("partition consumers must be closed")
	}
}

func TestReplay_DryRunDoesNotPublish(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 1},
	}
	source := &fakeSource{byPartition: map[int32]*fakePartition{0: newFakePartition(deadLetterMessage(t, 0, 0, "3"))}}

	stats, err := replay(context.Background(), testConfig(false), client, source, nil)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if stats.replayed != 1 || stats.processed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestReplay_LimitAndEmptyPartitions(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{0, 1},
		oldest:     map[int32]int64{0: 0, 1: 0},
		newest:     map[int32]int64{0: 3, 1: 0},
	}
	source := &fakeSource{byPartition: map[int32]*fakePartition{0: newFakePartition(
		deadLetterMessage(t, 0, 0, "1"),
		deadLetterMessage(t, 0, 1, "2"),
		deadLetterMessage(t, 0, 2, "3"),
	)}}

	cfg := testConfig(true)
	cfg.limit = 2
	publisher := &fakeRepublisher{}

	stats, err := replay(context.Background(), cfg, client, source, publisher)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if stats.processed != 2 || len(publisher.replays) != 2 {
		t.Fatalf("limit must bound processing, got %+v", stats)
	}
}

func TestReplay_Errors(t *testing.T) {
	client := &fakeClient{
		partitions: []int32{0},
		oldest:     map[int32]int64{0: 0},
		newest:     map[int32]int64{0: 1},
	}

	if _, err := replay(context.Background(), testConfig(true), client, &fakeSource{}, nil); err == nil {
		t.Fatal("execute mode without publisher must fail")
	}

	boom := errors.New("broker down")
	source := &fakeSource{byPartition: map[int32]*fakePartition{0: newFakePartition(deadLetterMessage(t, 0, 0, "1"))}}
	if _, err := replay(context.Background(), testConfig(true), client, source, &fakeRepublisher{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected republish error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idleSource := &fakeSource{byPartition: map[int32]*fakePartition{0: newFakePartition()}}
	cfg := testConfig(false)
	cfg.idleTimeout = time.Minute
	if _, err := replay(ctx, cfg, client, idleSource, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
