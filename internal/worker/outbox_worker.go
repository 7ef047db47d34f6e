package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/foodops/orderflow/common/messaging"
	"github.com/foodops/orderflow/common/retry"
	"github.com/foodops/orderflow/internal/repository"
)

// OutboxWorker drains staged events to the bus on a ticker. Events stay
// PENDING until a publish succeeds, so the worst case is duplicate delivery,
// never loss; consumers deduplicate by event id.
type OutboxWorker struct {
	outboxRepo repository.OutboxRepository
	publisher  messaging.Publisher
	logger     *zap.Logger
	interval   time.Duration
	batchSize  int
}

// NewOutboxWorker creates an outbox worker polling at the given interval.
func NewOutboxWorker(
	outboxRepo repository.OutboxRepository,
	publisher messaging.Publisher,
	logger *zap.Logger,
	interval time.Duration,
) *OutboxWorker {
	return &OutboxWorker{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
		batchSize:  100,
	}
}

// Start runs the worker until ctx is canceled.
func (w *OutboxWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("outbox worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopped")
			return
		case <-ticker.C:
			if err := w.process(ctx); err != nil {
				w.logger.Error("failed to process outbox events", zap.Error(err))
			}
		}
	}
}

func (w *OutboxWorker) process(ctx context.Context) error {
	events, err := w.outboxRepo.FindPending(ctx, w.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	w.logger.Debug("processing outbox events", zap.Int("count", len(events)))

	for _, event := range events {
		if err := w.publishEvent(ctx, event); err != nil {
			w.logger.Error("failed to publish event",
				zap.Int64("eventId", event.ID),
				zap.String("eventType", event.EventType),
				zap.Error(err))
			continue
		}

		if err := w.outboxRepo.MarkSent(ctx, event.ID); err != nil {
			w.logger.Error("failed to mark event as sent",
				zap.Int64("eventId", event.ID),
				zap.Error(err))
		}
	}

	return nil
}

func (w *OutboxWorker) publishEvent(ctx context.Context, event *repository.OutboxEvent) error {
	// Key by order id so all events of one order land on one partition.
	key := event.AggregateID
	var payload struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err == nil && payload.OrderID != "" {
		key = payload.OrderID
	}

	return retry.Do(ctx, retry.Config{
		MaxAttempts:        3,
		InitialInterval:    200 * time.Millisecond,
		MaxInterval:        2 * time.Second,
		BackoffCoefficient: 2.0,
		MaxElapsedTime:     10 * time.Second,
	}, w.logger, func() error {
		return w.publisher.Publish(ctx, event.EventType, key, json.RawMessage(event.Payload))
	})
}
