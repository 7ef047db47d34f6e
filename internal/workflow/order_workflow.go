package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/foodops/orderflow/internal/domain"
	"github.com/foodops/orderflow/internal/service"
)

// OrderWorkflowName is the registered name of the order workflow.
const OrderWorkflowName = "OrderWorkflow"

// OrderWorkflowInput identifies the order a run drives.
type OrderWorkflowInput struct {
	TenantID string `json:"tenantId"`
	OrderID  string `json:"orderId"`
}

// OrderWorkflowResult summarizes how the run ended.
type OrderWorkflowResult struct {
	Outcome       string       `json:"outcome"` // "completed" or "rejected"
	RejectedStage domain.Stage `json:"rejectedStage,omitempty"`
}

// humanDecisionTimeout bounds how long a checkpoint activity may stay open
// waiting for its asynchronous completion.
const humanDecisionTimeout = 24 * time.Hour

// OrderWorkflow walks an order through its three human checkpoints. Each
// checkpoint activity hands its task token to the coordinator and suspends;
// the run resumes only when a confirmation call completes the activity. A
// rejected checkpoint ends the run early; the order was already canceled by
// the coordinator.
func OrderWorkflow(ctx workflow.Context, input OrderWorkflowInput) (OrderWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("order workflow started", "tenantId", input.TenantID, "orderId", input.OrderID)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: humanDecisionTimeout,
	})

	var a *Activities
	checkpoints := []interface{}{
		a.AwaitChefConfirmation,
		a.AwaitDispatchConfirmation,
		a.AwaitPickupConfirmation,
	}
	stages := []domain.Stage{
		domain.StageChefConfirmation,
		domain.StageDispatchConfirmation,
		domain.StagePickupConfirmation,
	}

	for i, checkpoint := range checkpoints {
		var outcome service.CheckpointOutcome
		if err := workflow.ExecuteActivity(ctx, checkpoint, input).Get(ctx, &outcome); err != nil {
			return OrderWorkflowResult{}, err
		}
		if outcome.Decision == service.DecisionRejected {
			logger.Info("checkpoint rejected, ending run",
				"orderId", input.OrderID, "stage", string(stages[i]))
			return OrderWorkflowResult{Outcome: "rejected", RejectedStage: stages[i]}, nil
		}
		logger.Info("checkpoint approved",
			"orderId", input.OrderID,
			"stage", string(stages[i]),
			"nextStatus", string(outcome.NextStatus))
	}

	logger.Info("order workflow completed", "orderId", input.OrderID)
	return OrderWorkflowResult{Outcome: "completed"}, nil
}
