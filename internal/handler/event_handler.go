package handler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/foodops/orderflow/common/events"
	"github.com/foodops/orderflow/common/idempotency"
	"github.com/foodops/orderflow/common/messaging"
	"github.com/foodops/orderflow/internal/service"
)

const eventDedupeTTL = 24 * time.Hour

// EventHandler consumes bus events. Delivery is at-least-once, so every event
// is deduplicated by event id before it is processed.
type EventHandler struct {
	lifecycle *service.Lifecycle
	idemStore idempotency.Store
	logger    *zap.Logger
}

// NewEventHandler creates the bus event handler.
func NewEventHandler(
	lifecycle *service.Lifecycle,
	idemStore idempotency.Store,
	logger *zap.Logger,
) *EventHandler {
	return &EventHandler{
		lifecycle: lifecycle,
		idemStore: idemStore,
		logger:    logger,
	}
}

// HandleMessage dispatches a consumed message by topic.
func (h *EventHandler) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	h.logger.Debug("received message",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset))

	switch events.EventType(msg.Topic) {
	case events.EventOrderCreated:
		return h.handleOrderCreated(ctx, msg)
	default:
		h.logger.Warn("unknown event type", zap.String("topic", msg.Topic))
		return nil
	}
}

func (h *EventHandler) handleOrderCreated(ctx context.Context, msg *messaging.Message) error {
	var evt events.OrderCreatedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return err
	}

	if processed, _ := h.idemStore.IsProcessed(ctx, evt.EventID); processed {
		h.logger.Info("event already processed", zap.String("eventId", evt.EventID))
		return nil
	}

	if err := h.lifecycle.HandleOrderCreated(ctx, evt); err != nil {
		return err
	}

	_, _ = h.idemStore.Reserve(ctx, evt.EventID, eventDedupeTTL)
	return nil
}
