package workflow

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/foodops/orderflow/internal/service"
)

// TemporalStarter starts order workflow runs on a Temporal task queue. It
// implements service.WorkflowStarter.
type TemporalStarter struct {
	client    client.Client
	taskQueue string
	logger    *zap.Logger
}

// NewTemporalStarter creates a workflow starter for the given task queue.
func NewTemporalStarter(c client.Client, taskQueue string, logger *zap.Logger) *TemporalStarter {
	return &TemporalStarter{client: c, taskQueue: taskQueue, logger: logger}
}

// StartOrderWorkflow begins a run for the order. The workflow id is derived
// from the order key, so a duplicate order.created delivery collides with the
// already-running workflow instead of starting a second one.
func (s *TemporalStarter) StartOrderWorkflow(ctx context.Context, tenantID, orderID string) error {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("order-%s-%s", tenantID, orderID),
		TaskQueue: s.taskQueue,
	}

	run, err := s.client.ExecuteWorkflow(ctx, opts, OrderWorkflowName, OrderWorkflowInput{
		TenantID: tenantID,
		OrderID:  orderID,
	})
	if err != nil {
		return fmt.Errorf("failed to start order workflow: %w", err)
	}

	s.logger.Info("order workflow run started",
		zap.String("orderId", orderID),
		zap.String("workflowId", run.GetID()),
		zap.String("runId", run.GetRunID()))
	return nil
}

// TemporalResumer completes suspended checkpoint activities. It implements
// service.CheckpointResumer.
type TemporalResumer struct {
	client client.Client
}

// NewTemporalResumer creates the resume-primitive adapter.
func NewTemporalResumer(c client.Client) *TemporalResumer {
	return &TemporalResumer{client: c}
}

// ResumeCheckpoint completes the activity identified by token with the
// outcome. An unknown or expired token surfaces as an error; the caller maps
// it to INTERNAL and does not retry.
func (r *TemporalResumer) ResumeCheckpoint(ctx context.Context, token []byte, outcome service.CheckpointOutcome) error {
	if err := r.client.CompleteActivity(ctx, token, outcome, nil); err != nil {
		return fmt.Errorf("failed to complete checkpoint activity: %w", err)
	}
	return nil
}
