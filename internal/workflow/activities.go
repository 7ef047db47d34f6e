package workflow

import (
	"context"
	"encoding/base64"

	"go.temporal.io/sdk/activity"

	"github.com/foodops/orderflow/internal/domain"
	"github.com/foodops/orderflow/internal/service"
)

// Activities are the checkpoint activities executed by the order workflow.
// Each one registers its task token with the coordinator and returns
// ErrResultPending, suspending the run until a confirmation call completes
// the activity asynchronously with a CheckpointOutcome.
type Activities struct {
	coordinator *service.Coordinator
}

// NewActivities creates the workflow activities.
func NewActivities(coordinator *service.Coordinator) *Activities {
	return &Activities{coordinator: coordinator}
}

// AwaitChefConfirmation parks the order until the chef accepts or declines it.
func (a *Activities) AwaitChefConfirmation(ctx context.Context, input OrderWorkflowInput) (service.CheckpointOutcome, error) {
	return a.enterCheckpoint(ctx, input, domain.StageChefConfirmation)
}

// AwaitDispatchConfirmation parks the order until the dispatcher releases it.
func (a *Activities) AwaitDispatchConfirmation(ctx context.Context, input OrderWorkflowInput) (service.CheckpointOutcome, error) {
	return a.enterCheckpoint(ctx, input, domain.StageDispatchConfirmation)
}

// AwaitPickupConfirmation parks the order until the courier confirms pickup.
func (a *Activities) AwaitPickupConfirmation(ctx context.Context, input OrderWorkflowInput) (service.CheckpointOutcome, error) {
	return a.enterCheckpoint(ctx, input, domain.StagePickupConfirmation)
}

func (a *Activities) enterCheckpoint(ctx context.Context, input OrderWorkflowInput, stage domain.Stage) (service.CheckpointOutcome, error) {
	info := activity.GetInfo(ctx)
	token := base64.StdEncoding.EncodeToString(info.TaskToken)

	err := a.coordinator.EnterCheckpoint(ctx, service.EnterCheckpointCommand{
		TenantID: input.TenantID,
		OrderID:  input.OrderID,
		Stage:    stage,
		Token:    token,
	})
	if err != nil {
		return service.CheckpointOutcome{}, err
	}

	// Completed later through the resume primitive.
	return service.CheckpointOutcome{}, activity.ErrResultPending
}
