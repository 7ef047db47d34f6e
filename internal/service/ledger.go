package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/foodops/orderflow/common/errors"
	"github.com/foodops/orderflow/internal/clock"
	"github.com/foodops/orderflow/internal/domain"
	"github.com/foodops/orderflow/internal/repository"
)

const (
	defaultMinThreshold = 10
	defaultMaxThreshold = 1000
)

// Ledger mutates per-tenant, per-product stock with a bounded movement log.
// Records are created lazily on first reference; stock never goes negative.
type Ledger struct {
	repo        repository.InventoryRepository
	clk         clock.Clock
	logger      *zap.Logger
	movementCap int
}

// NewLedger creates an inventory ledger keeping at most movementCap movements
// per record.
func NewLedger(repo repository.InventoryRepository, clk clock.Clock, logger *zap.Logger, movementCap int) *Ledger {
	return &Ledger{
		repo:        repo,
		clk:         clk,
		logger:      logger,
		movementCap: movementCap,
	}
}

// Check verifies that qty units are currently available. It is a plain read,
// not a reservation: stock may be gone by the time the decrement runs.
func (l *Ledger) Check(ctx context.Context, tenantID, productID string, qty int) error {
	if qty <= 0 {
		return errors.New(errors.ErrCodeValidation, "quantity must be positive")
	}

	rec, err := l.repo.Find(ctx, tenantID, productID)
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.Newf(errors.ErrCodeInsufficientStock,
				"insufficient stock for product %s: have 0, need %d", productID, qty)
		}
		return err
	}
	if rec.CurrentStock < qty {
		return errors.Newf(errors.ErrCodeInsufficientStock,
			"insufficient stock for product %s: have %d, need %d", productID, rec.CurrentStock, qty)
	}
	return nil
}

// Decrement deducts qty units. It refuses with INSUFFICIENT_STOCK, mutating
// nothing, when fewer than qty units are available. A previously-unseen
// product is created at stock 0 first, so the decrement then refuses.
func (l *Ledger) Decrement(ctx context.Context, tenantID, productID string, qty int, orderID, reason string) error {
	if qty <= 0 {
		return errors.New(errors.ErrCodeValidation, "quantity must be positive")
	}

	if err := l.repo.EnsureRecord(ctx, tenantID, productID, defaultMinThreshold, defaultMaxThreshold); err != nil {
		return err
	}

	ok, err := l.repo.ApplyDelta(ctx, tenantID, productID, -qty)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Newf(errors.ErrCodeInsufficientStock,
			"insufficient stock for product %s: need %d", productID, qty)
	}

	l.appendMovement(ctx, tenantID, productID, domain.Movement{
		Type:      domain.MovementOut,
		Quantity:  qty,
		OrderID:   orderID,
		Reason:    reason,
		Timestamp: l.clk.Now(),
	})
	return nil
}

// Increment adds qty units, creating the record when unseen.
func (l *Ledger) Increment(ctx context.Context, tenantID, productID string, qty int, orderID, reason string) error {
	if qty <= 0 {
		return errors.New(errors.ErrCodeValidation, "quantity must be positive")
	}

	if err := l.repo.EnsureRecord(ctx, tenantID, productID, defaultMinThreshold, defaultMaxThreshold); err != nil {
		return err
	}

	ok, err := l.repo.ApplyDelta(ctx, tenantID, productID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Newf(errors.ErrCodeInternal, "failed to increment stock for product %s", productID)
	}

	l.appendMovement(ctx, tenantID, productID, domain.Movement{
		Type:      domain.MovementIn,
		Quantity:  qty,
		OrderID:   orderID,
		Reason:    reason,
		Timestamp: l.clk.Now(),
	})
	return nil
}

// Adjust sets the absolute stock value, clamped to zero. When thresholds are
// supplied they replace the stored ones; a previously-unseen product is
// created with them.
func (l *Ledger) Adjust(ctx context.Context, tenantID, productID string, stock int, minThreshold, maxThreshold *int) (*domain.InventoryRecord, error) {
	if stock < 0 {
		stock = 0
	}

	minT := defaultMinThreshold
	if minThreshold != nil {
		minT = *minThreshold
	}
	maxT := defaultMaxThreshold
	if maxThreshold != nil {
		maxT = *maxThreshold
	}

	if err := l.repo.EnsureRecord(ctx, tenantID, productID, minT, maxT); err != nil {
		return nil, err
	}
	if err := l.repo.SetStock(ctx, tenantID, productID, stock, minThreshold, maxThreshold); err != nil {
		return nil, err
	}

	l.appendMovement(ctx, tenantID, productID, domain.Movement{
		Type:      domain.MovementAdjust,
		Quantity:  stock,
		Reason:    "manual adjustment",
		Timestamp: l.clk.Now(),
	})

	return l.repo.Find(ctx, tenantID, productID)
}

// Get returns the record with its capped movement log, most recent first.
func (l *Ledger) Get(ctx context.Context, tenantID, productID string) (*domain.InventoryRecord, error) {
	return l.repo.Find(ctx, tenantID, productID)
}

// The movement log is an audit trail; losing an entry must not undo a stock
// write that already committed.
func (l *Ledger) appendMovement(ctx context.Context, tenantID, productID string, m domain.Movement) {
	if err := l.repo.AppendMovement(ctx, tenantID, productID, m, l.movementCap); err != nil {
		l.logger.Error("failed to append inventory movement",
			zap.Error(err),
			zap.String("tenantId", tenantID),
			zap.String("productId", productID))
	}
}
