package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/foodops/orderflow/common/events"
	"github.com/foodops/orderflow/common/messaging"
)

// KafkaNotifier publishes per-transition operational notifications. Delivery
// is fire-and-forget: a publish failure is logged and never surfaced, and
// nothing is rolled back or retried.
type KafkaNotifier struct {
	publisher messaging.Publisher
	topic     string
	logger    *zap.Logger
}

// NewKafkaNotifier creates a notifier publishing to the given topic.
func NewKafkaNotifier(publisher messaging.Publisher, topic string, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, topic: topic, logger: logger}
}

// Notify publishes an {order_id, kind} message.
func (n *KafkaNotifier) Notify(ctx context.Context, orderID, kind string) {
	msg := events.OrderNotification{OrderID: orderID, Kind: kind}
	if err := n.publisher.Publish(ctx, n.topic, orderID, msg); err != nil {
		n.logger.Warn("failed to publish notification",
			zap.Error(err),
			zap.String("orderId", orderID),
			zap.String("kind", kind))
	}
}

// NopNotifier discards notifications. Used where no bus is wired.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, string, string) {}
