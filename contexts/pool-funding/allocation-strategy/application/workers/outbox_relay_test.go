package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"grantpool/contexts/pool-funding/allocation-strategy/adapters/memory"
	"grantpool/contexts/pool-funding/allocation-strategy/ports"
)

type capturingPublisher struct {
	published []ports.EventEnvelope
	topics    []string
	fail      bool
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.fail {
		return errors.New("bus unavailable")
	}
	p.topics = append(p.topics, topic)
	p.published = append(p.published, event)
	return nil
}

func appendEnvelope(t *testing.T, store *memory.Store, eventID string, eventType string) {
	t.Helper()
	err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		SourceService: "grantpool",
		OccurredAtUTC: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		PartitionKey:  "recipient-1",
	})
	if err != nil {
		t.Fatalf("append outbox: %v", err)
	}
}

func TestOutboxRelayPublishesPendingRows(t *testing.T) {
	store := memory.NewStore(memory.Seed{})
	appendEnvelope(t, store, "evt-1", "recipient.registered")
	appendEnvelope(t, store, "evt-2", "payout.distributed")

	publisher := &capturingPublisher{}
	relay := OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if len(publisher.published) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.published))
	}
	if publisher.topics[0] != "recipient.registered" || publisher.topics[1] != "payout.distributed" {
		t.Fatalf("unexpected topics: %v", publisher.topics)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending rows after relay, got %d", len(pending))
	}
}

func TestOutboxRelayLeavesRowsPendingOnPublishFailure(t *testing.T) {
	store := memory.NewStore(memory.Seed{})
	appendEnvelope(t, store, "evt-1", "recipient.registered")

	relay := OutboxRelay{
		Outbox:    store,
		Publisher: &capturingPublisher{fail: true},
	}

	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatal("expected publish failure to surface")
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected row to stay pending, got %d", len(pending))
	}
}

func TestOutboxRelayNoopWithoutPendingRows(t *testing.T) {
	relay := OutboxRelay{
		Outbox:    memory.NewStore(memory.Seed{}),
		Publisher: &capturingPublisher{},
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
}
