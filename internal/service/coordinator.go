package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/foodops/orderflow/common/errors"
	"github.com/foodops/orderflow/common/idempotency"
	"github.com/foodops/orderflow/internal/domain"
	"github.com/foodops/orderflow/internal/repository"
)

const resumeKeyTTL = 24 * time.Hour

// Coordinator manages the suspend/resume checkpoints for human decisions.
//
// A stage's token moves absent -> pending (on enter) -> absent (on resume,
// either outcome). Entering while pending overwrites the stored token and logs
// a warning; a resume carrying the superseded token is then rejected as stale.
type Coordinator struct {
	orders   repository.OrderRepository
	recorder *Recorder
	resumer  CheckpointResumer
	idem     idempotency.Store
	notifier Notifier
	logger   *zap.Logger
}

// NewCoordinator creates a workflow coordinator.
func NewCoordinator(
	orders repository.OrderRepository,
	recorder *Recorder,
	resumer CheckpointResumer,
	idem idempotency.Store,
	notifier Notifier,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		orders:   orders,
		recorder: recorder,
		resumer:  resumer,
		idem:     idem,
		notifier: notifier,
		logger:   logger,
	}
}

// EnterCheckpoint stores the continuation token delivered by the
// durable-execution collaborator and parks the order in the stage's waiting
// status. The order makes no further progress on this stage until a resume
// call arrives.
func (c *Coordinator) EnterCheckpoint(ctx context.Context, cmd EnterCheckpointCommand) error {
	if !cmd.Stage.Valid() {
		return errors.Newf(errors.ErrCodeValidation, "unknown checkpoint stage %q", cmd.Stage)
	}
	if cmd.Token == "" {
		return errors.New(errors.ErrCodeValidation, "checkpoint token is required")
	}

	order, err := c.orders.Find(ctx, cmd.TenantID, cmd.OrderID)
	if err != nil {
		return err
	}

	if existing := order.CheckpointToken(cmd.Stage); existing != "" {
		c.logger.Warn("duplicate checkpoint enter, overwriting stored token",
			zap.String("orderId", cmd.OrderID),
			zap.String("stage", string(cmd.Stage)))
	}

	// A late enter-signal must never move a terminal or unrelated order into
	// the waiting status; only re-entry while waiting or a legal transition
	// into the waiting status is accepted.
	waiting := cmd.Stage.WaitingStatus()
	if order.Status != waiting {
		if err := domain.ValidateTransition(order.Status, waiting); err != nil {
			return errors.Newf(errors.ErrCodeConflict,
				"order %s cannot await %s in status %q", cmd.OrderID, cmd.Stage, order.Status)
		}
	}

	applied, err := c.orders.SetCheckpoint(ctx, cmd.TenantID, cmd.OrderID, cmd.Stage, cmd.Token, order.Status, waiting)
	if err != nil {
		return err
	}
	if !applied {
		return errors.Newf(errors.ErrCodeConflict,
			"order %s was modified concurrently", cmd.OrderID)
	}

	// The chef stage waits in pending, where the order already sits; the
	// later stages move the order into their waiting status.
	if order.Status != waiting {
		start := order.UpdatedAt
		c.recorder.RecordBestEffort(ctx, RecordStateChange{
			OrderID:   cmd.OrderID,
			TenantID:  cmd.TenantID,
			Previous:  order.Status,
			Next:      waiting,
			ActorID:   "system",
			ActorRole: domain.RoleStaff,
			Reason:    "awaiting " + string(cmd.Stage),
			StartTime: &start,
		})
	}

	c.notifier.Notify(ctx, cmd.OrderID, "awaiting_"+string(cmd.Stage))

	c.logger.Info("checkpoint token stored",
		zap.String("orderId", cmd.OrderID),
		zap.String("stage", string(cmd.Stage)),
		zap.String("status", string(waiting)))
	return nil
}

// ResumeCheckpoint resolves a pending checkpoint with a human decision. It
// invokes the resume primitive once, clears the token, advances the order
// status, and records history. Resume-primitive failures surface as INTERNAL
// and are not retried here.
func (c *Coordinator) ResumeCheckpoint(ctx context.Context, cmd ResumeCheckpointCommand) (*domain.Order, error) {
	if !cmd.Stage.Valid() {
		return nil, errors.Newf(errors.ErrCodeValidation, "unknown checkpoint stage %q", cmd.Stage)
	}
	if cmd.Decision != DecisionApproved && cmd.Decision != DecisionRejected {
		return nil, errors.Newf(errors.ErrCodeValidation, "unknown decision %q", cmd.Decision)
	}
	if cmd.ActorID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "actor_id is required")
	}

	order, err := c.orders.Find(ctx, cmd.TenantID, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	stored := order.CheckpointToken(cmd.Stage)
	if stored == "" {
		return nil, errors.Newf(errors.ErrCodeConflict,
			"no pending %s confirmation for order %s", cmd.Stage, cmd.OrderID)
	}
	if cmd.Token != "" && cmd.Token != stored {
		return nil, errors.Newf(errors.ErrCodeConflict,
			"stale checkpoint token for order %s", cmd.OrderID)
	}
	// The stored token is only actionable while the order still sits in the
	// stage's waiting status; a canceled or already-advanced order must not
	// have its run resumed.
	if order.Status != cmd.Stage.WaitingStatus() {
		return nil, errors.Newf(errors.ErrCodeConflict,
			"order %s is no longer awaiting %s", cmd.OrderID, cmd.Stage)
	}

	// One resolution per token. A concurrent duplicate loses the reservation
	// and is reported as a conflict instead of resuming the run twice.
	reserved, err := c.idem.Reserve(ctx, resumeKey(stored), resumeKeyTTL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to reserve resume key", err)
	}
	if !reserved {
		return nil, errors.Newf(errors.ErrCodeConflict,
			"checkpoint for order %s is already being resolved", cmd.OrderID)
	}

	next := cmd.Stage.ApprovedStatus()
	if cmd.Decision == DecisionRejected {
		next = domain.StatusCanceled
	}

	tokenBytes, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "malformed checkpoint token", err)
	}

	outcome := CheckpointOutcome{
		TenantID:   cmd.TenantID,
		OrderID:    cmd.OrderID,
		Decision:   cmd.Decision,
		NextStatus: next,
	}
	if err := c.resumer.ResumeCheckpoint(ctx, tokenBytes, outcome); err != nil {
		// Leave the reservation released so a later retry by the caller can
		// attempt the resume again against a fresh token.
		if relErr := c.idem.Release(ctx, resumeKey(stored)); relErr != nil {
			c.logger.Error("failed to release resume key", zap.Error(relErr))
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to resume workflow run", err)
	}

	upd := repository.StatusUpdate{
		TenantID:       cmd.TenantID,
		OrderID:        cmd.OrderID,
		ExpectedStatus: cmd.Stage.WaitingStatus(),
		NewStatus:      next,
		Closed:         next.Terminal(),
	}
	if cmd.Decision == DecisionApproved {
		switch cmd.Stage {
		case domain.StageChefConfirmation:
			upd.ChefID = cmd.ActorID
		case domain.StagePickupConfirmation:
			upd.CourierID = cmd.ActorID
		}
	}

	applied, err := c.orders.ResolveCheckpoint(ctx, cmd.TenantID, cmd.OrderID, cmd.Stage, upd)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errors.Newf(errors.ErrCodeConflict,
			"checkpoint for order %s was resolved concurrently", cmd.OrderID)
	}

	reason := cmd.Reason
	if reason == "" {
		reason = string(cmd.Stage) + " " + string(cmd.Decision)
	}
	start := order.UpdatedAt
	c.recorder.RecordBestEffort(ctx, RecordStateChange{
		OrderID:   cmd.OrderID,
		TenantID:  cmd.TenantID,
		Previous:  cmd.Stage.WaitingStatus(),
		Next:      next,
		ActorID:   cmd.ActorID,
		ActorRole: domain.RoleStaff,
		Reason:    reason,
		StartTime: &start,
	})

	c.notifier.Notify(ctx, cmd.OrderID, string(next))

	c.logger.Info("checkpoint resolved",
		zap.String("orderId", cmd.OrderID),
		zap.String("stage", string(cmd.Stage)),
		zap.String("decision", string(cmd.Decision)),
		zap.String("status", string(next)))

	return c.orders.Find(ctx, cmd.TenantID, cmd.OrderID)
}

func resumeKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "resume:" + hex.EncodeToString(sum[:])
}
