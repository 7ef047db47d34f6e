package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodops/orderflow/common/logger"
	"github.com/foodops/orderflow/internal/repository"
)

type stubOutboxRepo struct {
	mu     sync.Mutex
	events []*repository.OutboxEvent
}

func (r *stubOutboxRepo) Insert(_ context.Context, event *repository.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = int64(len(r.events) + 1)
	r.events = append(r.events, event)
	return nil
}

func (r *stubOutboxRepo) InsertTx(ctx context.Context, _ *sql.Tx, event *repository.OutboxEvent) error {
	return r.Insert(ctx, event)
}

func (r *stubOutboxRepo) FindPending(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*repository.OutboxEvent, 0, limit)
	for _, e := range r.events {
		if e.Status != "SENT" {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *stubOutboxRepo) MarkSent(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID == id {
			e.Status = "SENT"
		}
	}
	return nil
}

type published struct {
	topic string
	key   string
}

type stubPublisher struct {
	mu       sync.Mutex
	sent     []published
	failures int
}

func (p *stubPublisher) Publish(_ context.Context, topic, key string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, published{topic: topic, key: key})
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func stage(t *testing.T, repo *stubOutboxRepo, orderID, eventType string) {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"orderId": orderID})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), &repository.OutboxEvent{
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       payload,
	}))
}

func TestOutboxWorker_PublishesAndMarksSent(t *testing.T) {
	repo := &stubOutboxRepo{}
	pub := &stubPublisher{}
	w := NewOutboxWorker(repo, pub, logger.NewTestLogger(), time.Millisecond)

	stage(t, repo, "order-1", "order.created.v1")
	stage(t, repo, "order-2", "inventory.updated.v1")

	require.NoError(t, w.process(context.Background()))

	require.Len(t, pub.sent, 2)
	assert.Equal(t, published{topic: "order.created.v1", key: "order-1"}, pub.sent[0])
	assert.Equal(t, published{topic: "inventory.updated.v1", key: "order-2"}, pub.sent[1])

	pending, err := repo.FindPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxWorker_FailedPublishStaysPending(t *testing.T) {
	repo := &stubOutboxRepo{}
	pub := &stubPublisher{failures: 10}
	w := NewOutboxWorker(repo, pub, logger.NewTestLogger(), time.Millisecond)

	stage(t, repo, "order-1", "order.created.v1")

	require.NoError(t, w.process(context.Background()))

	pending, err := repo.FindPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// A later pass delivers it once the broker is back.
	pub.failures = 0
	require.NoError(t, w.process(context.Background()))

	pending, err = repo.FindPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxWorker_StartStopsOnCancel(t *testing.T) {
	repo := &stubOutboxRepo{}
	pub := &stubPublisher{}
	w := NewOutboxWorker(repo, pub, logger.NewTestLogger(), time.Millisecond)

	stage(t, repo, "order-1", "order.created.v1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		pending, err := repo.FindPending(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
