package service

import (
	"context"

	"github.com/foodops/orderflow/internal/domain"
)

// Origin tags where an inbound signal entered the system. Handlers normalize
// every transport shape into one of the command types below before any
// component sees it; nothing downstream branches on transport fields.
type Origin string

const (
	OriginAPI      Origin = "api"
	OriginQueue    Origin = "queue"
	OriginWorkflow Origin = "workflow"
)

// Decision is a human checkpoint outcome.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// TransitionSignal is the single normalized shape of a direct state-change
// request, regardless of origin.
type TransitionSignal struct {
	Origin       Origin
	TenantID     string
	OrderID      string
	TargetStatus domain.Status
	ActorID      string
	ActorRole    domain.ActorRole
	Reason       string
}

// EnterCheckpointCommand is delivered by the durable-execution collaborator
// when a workflow run reaches a human-decision stage.
type EnterCheckpointCommand struct {
	TenantID string
	OrderID  string
	Stage    domain.Stage
	Token    string
}

// ResumeCheckpointCommand is the human-facing resolution of a pending
// checkpoint. Token is optional; when present it must match the stored token.
type ResumeCheckpointCommand struct {
	TenantID string
	OrderID  string
	Stage    domain.Stage
	Decision Decision
	ActorID  string
	Reason   string
	Token    string
}

// CheckpointOutcome is the payload handed to the durable-execution
// collaborator's resume primitive. The suspended workflow run continues (or
// ends) based on it.
type CheckpointOutcome struct {
	TenantID   string        `json:"tenantId"`
	OrderID    string        `json:"orderId"`
	Decision   Decision      `json:"decision"`
	NextStatus domain.Status `json:"nextStatus"`
}

// WorkflowStarter begins a durable workflow run for an order.
type WorkflowStarter interface {
	StartOrderWorkflow(ctx context.Context, tenantID, orderID string) error
}

// CheckpointResumer is the durable-execution collaborator's resume primitive.
// It is invoked at most once per checkpoint resolution and never retried.
type CheckpointResumer interface {
	ResumeCheckpoint(ctx context.Context, token []byte, outcome CheckpointOutcome) error
}

// Notifier delivers best-effort operational notifications. Implementations
// log failures and never propagate them.
type Notifier interface {
	Notify(ctx context.Context, orderID, kind string)
}
