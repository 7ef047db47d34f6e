package events

import "time"

// EventType identifies an event on the bus. Topic names match event types.
type EventType string

const (
	// Order events
	EventOrderCreated EventType = "order.created.v1"

	// Inventory events
	EventInventoryUpdated EventType = "inventory.updated.v1"

	// Notification channel (best-effort, operational visibility only)
	EventOrderNotification EventType = "order.notification.v1"
)

// BaseEvent is the envelope shared by every event.
type BaseEvent struct {
	EventID       string    `json:"eventId"`
	EventType     EventType `json:"eventType"`
	SchemaVersion int       `json:"schemaVersion"`
	OccurredAt    time.Time `json:"occurredAt"`
	CorrelationID string    `json:"correlationId"`
}

// OrderCreatedEvent announces a newly persisted order. Its consumer performs
// the actual stock decrement and starts the order workflow.
type OrderCreatedEvent struct {
	BaseEvent
	TenantID string `json:"tenantId"`
	OrderID  string `json:"orderId"`
}

// InventoryUpdatedEvent announces that the line items of an order have been
// deducted from stock.
type InventoryUpdatedEvent struct {
	BaseEvent
	TenantID string `json:"tenantId"`
	OrderID  string `json:"orderId"`
}

// OrderNotification is the best-effort per-transition message consumed by
// operational tooling. Delivery is never guaranteed nor retried.
type OrderNotification struct {
	OrderID string `json:"orderId"`
	Kind    string `json:"kind"`
}
