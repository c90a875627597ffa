package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sibusisodube/canopay-backend/pkg/config"
	"github.com/sibusisodube/canopay-backend/pkg/db/models"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	"github.com/sibusisodube/canopay-backend/pkg/outbox"
	"github.com/sibusisodube/canopay-backend/pkg/outbox/registry"
)

// memoryOutbox hands out a fixed batch and records every bookkeeping call.
type memoryOutbox struct {
	pending   []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (m *memoryOutbox) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return m.pending, nil
}

func (m *memoryOutbox) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memoryOutbox) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memoryOutbox) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	m.terminal = append(m.terminal, id)
	return nil
}

type memoryDLQ struct {
	entries []models.OutboxDLQ
}

func (m *memoryDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}

// scriptedPublisher returns one scripted outcome per publish, in order, and
// keeps the messages it saw.
type scriptedPublisher struct {
	outcomes []error
	messages []*gcppubsub.Message
}

func (p *scriptedPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	if len(p.outcomes) == 0 {
		return scriptedResult{}
	}
	outcome := p.outcomes[0]
	p.outcomes = p.outcomes[1:]
	return scriptedResult{err: outcome}
}

type scriptedResult struct {
	err error
}

func (r scriptedResult) Get(context.Context) (string, error) {
	return "msg-id", r.err
}

// staticResolver resolves every event onto one topic, or fails every event.
type staticResolver struct {
	topic string
	err   error
}

func (r staticResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         r.topic,
			AggregateType: event.AggregateType,
		},
		Envelope: outbox.PayloadEnvelope{
			Version:    1,
			EventID:    event.ID.String(),
			OccurredAt: time.Now(),
		},
	}, nil
}

type stubTxRunner struct{}

func (stubTxRunner) Ping(context.Context) error {
	return nil
}

func (stubTxRunner) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type stubBroker struct{}

func (stubBroker) Ping(context.Context) error {
	return nil
}

func (stubBroker) DomainPublisher() *gcppubsub.Publisher {
	return nil
}

func (stubBroker) Publisher(string) *gcppubsub.Publisher {
	return nil
}

type publisherFixture struct {
	repo     *memoryOutbox
	dlq      *memoryDLQ
	pub      *scriptedPublisher
	resolver registryResolver
	outbox   config.OutboxConfig
	topics   []string
}

func (f *publisherFixture) service(t *testing.T) *Service {
	t.Helper()
	if f.outbox.BatchSize == 0 {
		f.outbox = config.OutboxConfig{BatchSize: 10, PollIntervalMS: 100, MaxAttempts: 5}
	}
	if f.resolver == nil {
		f.resolver = staticResolver{topic: "ledger-events"}
	}
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{Outbox: f.outbox},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         stubTxRunner{},
		PubSub:     stubBroker{},
		Repository: f.repo,
		Registry:   f.resolver,
		PublisherFactory: func(topic string) publisher {
			f.topics = append(f.topics, topic)
			return f.pub
		},
		DLQRepository: f.dlq,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func pendingEvent(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateEarningsAccount,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func TestDrainOnceIdleWhenNothingPending(t *testing.T) {
	fixture := &publisherFixture{repo: &memoryOutbox{}, dlq: &memoryDLQ{}, pub: &scriptedPublisher{}}
	svc := fixture.service(t)

	drained, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if drained != 0 {
		t.Fatalf("expected idle drain, got %d", drained)
	}
	if len(fixture.pub.messages) != 0 {
		t.Fatalf("nothing should be published, got %d messages", len(fixture.pub.messages))
	}
}

func TestDrainOncePublishesWithEventAttributes(t *testing.T) {
	event := pendingEvent(t, enums.EventPayoutRequested, 0)
	fixture := &publisherFixture{
		repo: &memoryOutbox{pending: []models.OutboxEvent{event}},
		dlq:  &memoryDLQ{},
		pub:  &scriptedPublisher{},
	}
	svc := fixture.service(t)

	drained, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if drained != 1 {
		t.Fatalf("expected one event drained, got %d", drained)
	}
	if len(fixture.topics) != 1 || fixture.topics[0] != "ledger-events" {
		t.Fatalf("expected publisher built for descriptor topic, got %v", fixture.topics)
	}
	if len(fixture.repo.published) != 1 || fixture.repo.published[0] != event.ID {
		t.Fatalf("published bookkeeping mismatch: %v", fixture.repo.published)
	}

	msg := fixture.pub.messages[0]
	if !bytes.Equal(msg.Data, []byte(event.Payload)) {
		t.Fatalf("message body must carry the stored envelope")
	}
	for _, attr := range []struct {
		key  string
		want string
	}{
		{"event_id", event.ID.String()},
		{"event_type", string(event.EventType)},
		{"aggregate_type", string(event.AggregateType)},
		{"aggregate_id", event.AggregateID.String()},
	} {
		if got := msg.Attributes[attr.key]; got != attr.want {
			t.Fatalf("attribute %s: expected %q got %q", attr.key, attr.want, got)
		}
	}
}

func TestDrainOnceContinuesPastTransientFailure(t *testing.T) {
	first := pendingEvent(t, enums.EventCommissionAccrued, 0)
	second := pendingEvent(t, enums.EventCommissionAccrued, 0)
	fixture := &publisherFixture{
		repo: &memoryOutbox{pending: []models.OutboxEvent{first, second}},
		dlq:  &memoryDLQ{},
		pub:  &scriptedPublisher{outcomes: []error{errors.New("transient"), nil}},
	}
	svc := fixture.service(t)

	drained, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if drained != 2 {
		t.Fatalf("expected both events handled, got %d", drained)
	}
	if len(fixture.repo.failed) != 1 || fixture.repo.failed[0] != first.ID {
		t.Fatalf("failure bookkeeping mismatch: %v", fixture.repo.failed)
	}
	if len(fixture.repo.published) != 1 || fixture.repo.published[0] != second.ID {
		t.Fatalf("publish bookkeeping mismatch: %v", fixture.repo.published)
	}
	if len(fixture.dlq.entries) != 0 {
		t.Fatalf("transient failure must not dead-letter, got %d entries", len(fixture.dlq.entries))
	}
}

func TestDrainOnceDeadLettersUnresolvableEvents(t *testing.T) {
	event := pendingEvent(t, enums.EventCommissionAccrued, 0)
	fixture := &publisherFixture{
		repo:     &memoryOutbox{pending: []models.OutboxEvent{event}},
		dlq:      &memoryDLQ{},
		pub:      &scriptedPublisher{},
		resolver: staticResolver{err: registry.NewNonRetryableError(errors.New("invalid payload"))},
	}
	svc := fixture.service(t)

	if _, err := svc.drainOnce(context.Background()); err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if len(fixture.dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(fixture.dlq.entries))
	}
	entry := fixture.dlq.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event id mismatch: %s", entry.EventID)
	}
	if !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected dlq reason: %s", entry.ErrorReason)
	}
	if len(fixture.repo.terminal) != 1 || fixture.repo.terminal[0] != event.ID {
		t.Fatalf("expected event marked terminal, got %v", fixture.repo.terminal)
	}
}

func TestDrainOnceDeadLettersAfterMaxAttempts(t *testing.T) {
	event := pendingEvent(t, enums.EventCommissionAccrued, 1)
	fixture := &publisherFixture{
		repo:   &memoryOutbox{pending: []models.OutboxEvent{event}},
		dlq:    &memoryDLQ{},
		pub:    &scriptedPublisher{outcomes: []error{errors.New("transient")}},
		outbox: config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 2},
	}
	svc := fixture.service(t)

	if _, err := svc.drainOnce(context.Background()); err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if len(fixture.dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(fixture.dlq.entries))
	}
	if fixture.dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected dlq reason: %s", fixture.dlq.entries[0].ErrorReason)
	}
	if len(fixture.repo.failed) != 0 {
		t.Fatalf("exhausted event must not be re-queued, got %v", fixture.repo.failed)
	}
}
