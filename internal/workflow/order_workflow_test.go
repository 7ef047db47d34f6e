package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	temporalworkflow "go.temporal.io/sdk/workflow"

	"github.com/foodops/orderflow/internal/domain"
	"github.com/foodops/orderflow/internal/service"
)

func newWorkflowEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *Activities) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	a := NewActivities(nil)
	env.RegisterActivity(a)
	env.RegisterWorkflowWithOptions(OrderWorkflow, temporalworkflow.RegisterOptions{
		Name: OrderWorkflowName,
	})
	t.Cleanup(func() { env.AssertExpectations(t) })
	return env, a
}

func approved(stage domain.Stage) service.CheckpointOutcome {
	return service.CheckpointOutcome{
		TenantID:   "t1",
		OrderID:    "order-1",
		Decision:   service.DecisionApproved,
		NextStatus: stage.ApprovedStatus(),
	}
}

func TestOrderWorkflow_AllCheckpointsApproved(t *testing.T) {
	env, a := newWorkflowEnv(t)
	input := OrderWorkflowInput{TenantID: "t1", OrderID: "order-1"}

	env.OnActivity(a.AwaitChefConfirmation, mock.Anything, input).
		Return(approved(domain.StageChefConfirmation), nil).Once()
	env.OnActivity(a.AwaitDispatchConfirmation, mock.Anything, input).
		Return(approved(domain.StageDispatchConfirmation), nil).Once()
	env.OnActivity(a.AwaitPickupConfirmation, mock.Anything, input).
		Return(approved(domain.StagePickupConfirmation), nil).Once()

	env.ExecuteWorkflow(OrderWorkflowName, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result OrderWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "completed", result.Outcome)
	assert.Empty(t, result.RejectedStage)
}

func TestOrderWorkflow_RejectedStageEndsRun(t *testing.T) {
	env, a := newWorkflowEnv(t)
	input := OrderWorkflowInput{TenantID: "t1", OrderID: "order-1"}

	env.OnActivity(a.AwaitChefConfirmation, mock.Anything, input).
		Return(approved(domain.StageChefConfirmation), nil).Once()
	env.OnActivity(a.AwaitDispatchConfirmation, mock.Anything, input).
		Return(service.CheckpointOutcome{
			TenantID:   "t1",
			OrderID:    "order-1",
			Decision:   service.DecisionRejected,
			NextStatus: domain.StatusCanceled,
		}, nil).Once()

	env.ExecuteWorkflow(OrderWorkflowName, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result OrderWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "rejected", result.Outcome)
	assert.Equal(t, domain.StageDispatchConfirmation, result.RejectedStage)

	// The run ended before the pickup checkpoint.
	env.AssertNotCalled(t, "AwaitPickupConfirmation", mock.Anything, input)
}

func TestOrderWorkflow_ActivityFailurePropagates(t *testing.T) {
	env, a := newWorkflowEnv(t)
	input := OrderWorkflowInput{TenantID: "t1", OrderID: "order-1"}

	env.OnActivity(a.AwaitChefConfirmation, mock.Anything, input).
		Return(service.CheckpointOutcome{},
			temporal.NewNonRetryableApplicationError("order vanished", "NotFound", nil)).Once()

	env.ExecuteWorkflow(OrderWorkflowName, input)

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}
