package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foodops/orderflow/internal/clock"
	"github.com/foodops/orderflow/internal/domain"
	"github.com/foodops/orderflow/internal/repository"
)

// RecordStateChange describes one transition to append to the history.
type RecordStateChange struct {
	OrderID   string
	TenantID  string
	Previous  domain.Status
	Next      domain.Status
	ActorID   string
	ActorRole domain.ActorRole
	Reason    string
	// StartTime is when the previous state began, when known.
	StartTime *time.Time
}

// Recorder appends duration-annotated transition records. Entries are
// append-only; prior entries are never touched.
type Recorder struct {
	repo   repository.HistoryRepository
	clk    clock.Clock
	logger *zap.Logger
}

// NewRecorder creates a state-history recorder.
func NewRecorder(repo repository.HistoryRepository, clk clock.Clock, logger *zap.Logger) *Recorder {
	return &Recorder{repo: repo, clk: clk, logger: logger}
}

// Record appends an entry for the transition. DurationSeconds is derived from
// StartTime when known, nil otherwise.
func (r *Recorder) Record(ctx context.Context, change RecordStateChange) (*domain.StateHistoryEntry, error) {
	now := r.clk.Now()

	entry := &domain.StateHistoryEntry{
		EntryID:       uuid.New().String(),
		OrderID:       change.OrderID,
		TenantID:      change.TenantID,
		PreviousState: change.Previous,
		NewState:      change.Next,
		Timestamp:     now,
		ActorID:       change.ActorID,
		ActorRole:     change.ActorRole,
		Reason:        change.Reason,
		StartTime:     change.StartTime,
		EndTime:       now,
	}
	if change.StartTime != nil {
		duration := int64(now.Sub(*change.StartTime).Seconds())
		entry.DurationSeconds = &duration
	}

	if err := r.repo.Append(ctx, entry); err != nil {
		return nil, err
	}

	r.logger.Info("state change recorded",
		zap.String("orderId", change.OrderID),
		zap.String("previousState", string(change.Previous)),
		zap.String("newState", string(change.Next)))

	return entry, nil
}

// RecordBestEffort appends an entry and swallows any failure: once the primary
// status write has committed, a history write failure is logged, not surfaced.
func (r *Recorder) RecordBestEffort(ctx context.Context, change RecordStateChange) {
	if _, err := r.Record(ctx, change); err != nil {
		r.logger.Error("failed to record state change",
			zap.Error(err),
			zap.String("orderId", change.OrderID),
			zap.String("newState", string(change.Next)))
	}
}

// History returns the order's transition records, oldest first.
func (r *Recorder) History(ctx context.Context, tenantID, orderID string) ([]*domain.StateHistoryEntry, error) {
	return r.repo.ListByOrder(ctx, tenantID, orderID)
}
