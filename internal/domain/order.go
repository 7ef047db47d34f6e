package domain

import "time"

// Stage is a human-decision checkpoint in the order workflow.
type Stage string

const (
	StageChefConfirmation     Stage = "chef_confirmation"
	StageDispatchConfirmation Stage = "dispatch_confirmation"
	StagePickupConfirmation   Stage = "pickup_confirmation"
)

// Valid reports whether s is a known checkpoint stage.
func (s Stage) Valid() bool {
	switch s {
	case StageChefConfirmation, StageDispatchConfirmation, StagePickupConfirmation:
		return true
	}
	return false
}

// WaitingStatus is the order status while the stage's confirmation is pending.
func (s Stage) WaitingStatus() Status {
	switch s {
	case StageChefConfirmation:
		return StatusPending
	case StageDispatchConfirmation:
		return StatusDispatching
	case StagePickupConfirmation:
		return StatusPickingUp
	}
	return ""
}

// ApprovedStatus is the status the order advances to when the stage's
// confirmation is approved.
func (s Stage) ApprovedStatus() Status {
	switch s {
	case StageChefConfirmation:
		return StatusPreparing
	case StageDispatchConfirmation:
		return StatusDispatched
	case StagePickupConfirmation:
		return StatusEnRoute
	}
	return ""
}

// LineItem is one product/quantity pair within an order, fixed at creation.
type LineItem struct {
	ProductID string  `json:"product_id"`
	SKU       string  `json:"sku"`
	UnitPrice float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Order is the order aggregate. It is created once at StatusPending and
// mutated only through validated transitions; after a terminal status no
// further status mutation is permitted.
type Order struct {
	TenantID        string     `json:"tenant_id"`
	OrderID         string     `json:"order_id"`
	UserID          string     `json:"user_id"`
	Status          Status     `json:"status"`
	Items           []LineItem `json:"items"`
	TotalPrice      float64    `json:"total_price"`
	DeliveryAddress string     `json:"delivery_address"`
	Phone           string     `json:"phone"`
	Notes           string     `json:"notes,omitempty"`
	PaymentMethod   string     `json:"payment_method"`
	ChefID          string     `json:"chef_id,omitempty"`
	CourierID       string     `json:"courier_id,omitempty"`
	// PendingCheckpoints holds at most one continuation token per stage. A
	// stage's token exists iff the order is in that stage's waiting status.
	PendingCheckpoints map[Stage]string `json:"pending_checkpoints,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	ClosedAt           *time.Time       `json:"closed_at,omitempty"`
}

// CheckpointToken returns the stored continuation token for the stage, or ""
// when no confirmation is pending.
func (o *Order) CheckpointToken(stage Stage) string {
	if o.PendingCheckpoints == nil {
		return ""
	}
	return o.PendingCheckpoints[stage]
}
