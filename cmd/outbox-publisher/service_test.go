package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/logger"
)

type fakeOutboxRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeOutboxRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeOutboxRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePinger struct{}

func (fakePinger) Ping(context.Context) error { return nil }

type fakePublisher struct {
	fail     map[string]error
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if err, ok := f.fail[msg.Attributes["event_id"]]; ok {
		return fakePublishResult{err: err}
	}
	return fakePublishResult{}
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

func outboxEvent(t *testing.T, eventType enums.OutboxEventType) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"ping": "pong"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub domainPublisher) *Service {
	t.Helper()
	cfg := &config.Config{
		Outbox: config.OutboxConfig{
			BatchSize:      10,
			PollIntervalMS: 100,
			MaxAttempts:    5,
		},
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:    cfg,
		Logger:    logg,
		DB:        fakePinger{},
		PubSub:    fakePinger{},
		Repo:      repo,
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	failing := outboxEvent(t, enums.EventOrderPlaced)
	healthy := outboxEvent(t, enums.EventOrderPaid)
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{failing, healthy}}
	pub := &fakePublisher{fail: map[string]error{
		failing.ID.String(): errors.New("broker unavailable"),
	}}
	service := newTestService(t, repo, pub)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}

	if len(repo.failed) != 1 || repo.failed[0] != failing.ID {
		t.Fatalf("expected failing event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != healthy.ID {
		t.Fatalf("expected healthy event marked published, got %v", repo.published)
	}
}

func TestProcessBatchIdleWhenEmpty(t *testing.T) {
	service := newTestService(t, &fakeOutboxRepo{}, &fakePublisher{})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed {
		t.Fatalf("expected idle batch")
	}
}

func TestPublishCarriesEnvelopeAttributes(t *testing.T) {
	event := outboxEvent(t, enums.EventSubOrderSettled)
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if string(msg.Data) != string(event.Payload) {
		t.Fatalf("payload should pass through untouched")
	}
	attrs := msg.Attributes
	if attrs["event_type"] != string(enums.EventSubOrderSettled) {
		t.Fatalf("unexpected event_type attribute %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute %q", attrs["aggregate_id"])
	}
	if attrs["event_id"] != event.ID.String() {
		t.Fatalf("unexpected event_id attribute %q", attrs["event_id"])
	}
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
	service, err := NewService(ServiceParams{
		Config:    &config.Config{},
		Logger:    logg,
		DB:        fakePinger{},
		PubSub:    fakePinger{},
		Repo:      &fakeOutboxRepo{},
		Publisher: &fakePublisher{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if service.batchSize != defaultBatchSize {
		t.Fatalf("expected default batch size, got %d", service.batchSize)
	}
	if service.maxAttempts != defaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", service.maxAttempts)
	}
	if service.pollInterval != time.Duration(defaultPollMs)*time.Millisecond {
		t.Fatalf("expected default poll interval, got %v", service.pollInterval)
	}
}

func TestNextBackoffDoublesToCeiling(t *testing.T) {
	floor := 500 * time.Millisecond
	if got := nextBackoff(floor, floor, maxBackoff); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	if got := nextBackoff(8*time.Second, floor, maxBackoff); got != maxBackoff {
		t.Fatalf("expected ceiling %v, got %v", maxBackoff, got)
	}
	if got := nextBackoff(0, floor, maxBackoff); got != floor {
		t.Fatalf("expected floor %v, got %v", floor, got)
	}
}
