package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foodops/orderflow/common/errors"
	"github.com/foodops/orderflow/common/events"
	"github.com/foodops/orderflow/internal/clock"
	"github.com/foodops/orderflow/internal/domain"
	"github.com/foodops/orderflow/internal/repository"
)

// CreateOrderCommand is the normalized order-creation request.
type CreateOrderCommand struct {
	TenantID        string
	UserID          string
	Items           []domain.LineItem
	DeliveryAddress string
	Phone           string
	Notes           string
	PaymentMethod   string
}

// Lifecycle is the topmost orchestrator: it normalizes inbound signals, loads
// the order aggregate, and drives the validator, ledger, coordinator, and
// recorder.
type Lifecycle struct {
	db       *sql.DB
	orders   repository.OrderRepository
	outbox   repository.OutboxRepository
	ledger   *Ledger
	recorder *Recorder
	starter  WorkflowStarter
	resumer  CheckpointResumer
	notifier Notifier
	clk      clock.Clock
	logger   *zap.Logger
}

// NewLifecycle creates the order lifecycle orchestrator.
func NewLifecycle(
	db *sql.DB,
	orders repository.OrderRepository,
	outbox repository.OutboxRepository,
	ledger *Ledger,
	recorder *Recorder,
	starter WorkflowStarter,
	resumer CheckpointResumer,
	notifier Notifier,
	clk clock.Clock,
	logger *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		db:       db,
		orders:   orders,
		outbox:   outbox,
		ledger:   ledger,
		recorder: recorder,
		starter:  starter,
		resumer:  resumer,
		notifier: notifier,
		clk:      clk,
		logger:   logger,
	}
}

// CreateOrder pre-checks stock for every line item, computes the total, and
// persists the order at pending together with an order.created outbox event.
// The pre-check is a read, not a reservation: the decrement happens later in
// the queue consumer, so a narrow overselling window between the two is
// accepted in exchange for lower creation latency.
func (l *Lifecycle) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if err := validateCreateOrder(cmd); err != nil {
		return nil, err
	}

	var total float64
	items := make([]domain.LineItem, len(cmd.Items))
	for i, item := range cmd.Items {
		if item.SKU == "" {
			item.SKU = defaultSKU(item.ProductID)
		}
		if err := l.ledger.Check(ctx, cmd.TenantID, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
		items[i] = item
		total += item.UnitPrice * float64(item.Quantity)
	}

	now := l.clk.Now()
	order := &domain.Order{
		TenantID:        cmd.TenantID,
		OrderID:         uuid.New().String(),
		UserID:          cmd.UserID,
		Status:          domain.StatusPending,
		Items:           items,
		TotalPrice:      total,
		DeliveryAddress: cmd.DeliveryAddress,
		Phone:           cmd.Phone,
		Notes:           cmd.Notes,
		PaymentMethod:   cmd.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = "unspecified"
	}

	event := events.OrderCreatedEvent{
		BaseEvent: events.BaseEvent{
			EventID:       uuid.New().String(),
			EventType:     events.EventOrderCreated,
			SchemaVersion: 1,
			OccurredAt:    now,
			CorrelationID: uuid.New().String(),
		},
		TenantID: order.TenantID,
		OrderID:  order.OrderID,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSerializationError, "failed to marshal event", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := l.orders.CreateTx(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := l.outbox.InsertTx(ctx, tx, &repository.OutboxEvent{
		AggregateType: "order",
		AggregateID:   order.OrderID,
		EventType:     string(events.EventOrderCreated),
		Payload:       payload,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to commit transaction", err)
	}

	l.notifier.Notify(ctx, order.OrderID, "created")

	l.logger.Info("order created",
		zap.String("tenantId", order.TenantID),
		zap.String("orderId", order.OrderID),
		zap.Float64("totalPrice", order.TotalPrice),
		zap.Int("items", len(order.Items)))

	return order, nil
}

// ChangeStatus applies a validated direct transition: table check, role gate,
// guarded status write, history entry, best-effort notification. Terminal
// transitions also set closed_at.
func (l *Lifecycle) ChangeStatus(ctx context.Context, sig TransitionSignal) (*domain.Order, error) {
	if !sig.TargetStatus.Valid() {
		return nil, errors.Newf(errors.ErrCodeValidation, "unknown status %q", sig.TargetStatus)
	}

	order, err := l.orders.Find(ctx, sig.TenantID, sig.OrderID)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateActorTransition(order.Status, sig.TargetStatus, sig.ActorRole); err != nil {
		return nil, err
	}

	applied, err := l.orders.UpdateStatus(ctx, repository.StatusUpdate{
		TenantID:         sig.TenantID,
		OrderID:          sig.OrderID,
		ExpectedStatus:   order.Status,
		NewStatus:        sig.TargetStatus,
		Closed:           sig.TargetStatus.Terminal(),
		ClearCheckpoints: len(order.PendingCheckpoints) > 0,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errors.Newf(errors.ErrCodeConflict,
			"order %s was modified concurrently", sig.OrderID)
	}

	// A direct transition out of a waiting status abandons any suspended
	// checkpoint. The stored tokens were cleared in the same write; finish the
	// abandoned run with a rejecting outcome so it does not sit until the
	// activity times out.
	for stage, token := range order.PendingCheckpoints {
		raw, decErr := base64.StdEncoding.DecodeString(token)
		if decErr != nil {
			l.logger.Warn("undecodable checkpoint token on status change",
				zap.String("orderId", sig.OrderID),
				zap.String("stage", string(stage)),
				zap.Error(decErr))
			continue
		}
		if resErr := l.resumer.ResumeCheckpoint(ctx, raw, CheckpointOutcome{
			TenantID:   sig.TenantID,
			OrderID:    sig.OrderID,
			Decision:   DecisionRejected,
			NextStatus: sig.TargetStatus,
		}); resErr != nil {
			l.logger.Warn("failed to finish abandoned checkpoint run",
				zap.String("orderId", sig.OrderID),
				zap.String("stage", string(stage)),
				zap.Error(resErr))
		}
	}

	start := order.UpdatedAt
	l.recorder.RecordBestEffort(ctx, RecordStateChange{
		OrderID:   sig.OrderID,
		TenantID:  sig.TenantID,
		Previous:  order.Status,
		Next:      sig.TargetStatus,
		ActorID:   sig.ActorID,
		ActorRole: sig.ActorRole,
		Reason:    sig.Reason,
		StartTime: &start,
	})

	l.notifier.Notify(ctx, sig.OrderID, string(sig.TargetStatus))

	l.logger.Info("order status changed",
		zap.String("orderId", sig.OrderID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(sig.TargetStatus)),
		zap.String("origin", string(sig.Origin)))

	return l.orders.Find(ctx, sig.TenantID, sig.OrderID)
}

// GetOrder loads an order aggregate.
func (l *Lifecycle) GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	return l.orders.Find(ctx, tenantID, orderID)
}

// HandleOrderCreated is the queue-consumer reaction to order.created: deduct
// every line item from stock, stage an inventory.updated event, and start the
// durable workflow run. Delivery is at-least-once; the caller deduplicates by
// event id before invoking this.
func (l *Lifecycle) HandleOrderCreated(ctx context.Context, evt events.OrderCreatedEvent) error {
	order, err := l.orders.Find(ctx, evt.TenantID, evt.OrderID)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		if err := l.ledger.Decrement(ctx, order.TenantID, item.ProductID, item.Quantity, order.OrderID, "sale"); err != nil {
			return err
		}
	}

	updated := events.InventoryUpdatedEvent{
		BaseEvent: events.BaseEvent{
			EventID:       uuid.New().String(),
			EventType:     events.EventInventoryUpdated,
			SchemaVersion: 1,
			OccurredAt:    l.clk.Now(),
			CorrelationID: evt.CorrelationID,
		},
		TenantID: order.TenantID,
		OrderID:  order.OrderID,
	}
	payload, err := json.Marshal(updated)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSerializationError, "failed to marshal event", err)
	}
	if err := l.outbox.Insert(ctx, &repository.OutboxEvent{
		AggregateType: "inventory",
		AggregateID:   order.OrderID,
		EventType:     string(events.EventInventoryUpdated),
		Payload:       payload,
	}); err != nil {
		return err
	}

	if err := l.starter.StartOrderWorkflow(ctx, order.TenantID, order.OrderID); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to start order workflow", err)
	}

	l.logger.Info("inventory deducted and workflow started",
		zap.String("tenantId", order.TenantID),
		zap.String("orderId", order.OrderID))
	return nil
}

// History returns the order's transition records, oldest first.
func (l *Lifecycle) History(ctx context.Context, tenantID, orderID string) ([]*domain.StateHistoryEntry, error) {
	return l.recorder.History(ctx, tenantID, orderID)
}

func validateCreateOrder(cmd CreateOrderCommand) error {
	var problems []string

	if cmd.TenantID == "" {
		problems = append(problems, "tenant_id is required")
	}
	if cmd.UserID == "" {
		problems = append(problems, "user_id is required")
	}
	if len(cmd.Items) == 0 {
		problems = append(problems, "items must contain at least one entry")
	}
	for i, item := range cmd.Items {
		if item.ProductID == "" {
			problems = append(problems, fmt.Sprintf("items[%d].product_id is required", i))
		}
		if item.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d].quantity must be positive", i))
		}
		if item.UnitPrice < 0 {
			problems = append(problems, fmt.Sprintf("items[%d].price must not be negative", i))
		}
	}
	if cmd.DeliveryAddress == "" {
		problems = append(problems, "delivery_address is required")
	}
	if cmd.Phone == "" {
		problems = append(problems, "phone is required")
	}

	if len(problems) > 0 {
		return errors.New(errors.ErrCodeValidation, strings.Join(problems, "; "))
	}
	return nil
}

func defaultSKU(productID string) string {
	id := productID
	if len(id) > 8 {
		id = id[:8]
	}
	return "SKU-" + strings.ToUpper(id)
}
