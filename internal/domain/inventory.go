package domain

import "time"

// MovementType classifies an inventory movement.
type MovementType string

const (
	MovementOut    MovementType = "out"
	MovementIn     MovementType = "in"
	MovementAdjust MovementType = "adjust"
)

// Movement is one entry of an inventory record's bounded audit log.
type Movement struct {
	Type      MovementType `json:"type"`
	Quantity  int          `json:"qty"`
	OrderID   string       `json:"order_id,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// InventoryRecord is the per-tenant, per-product stock record. CurrentStock is
// never negative. Records are created lazily on first reference.
type InventoryRecord struct {
	TenantID     string    `json:"tenant_id"`
	ProductID    string    `json:"product_id"`
	CurrentStock int       `json:"current_stock"`
	MinThreshold int       `json:"min_threshold"`
	MaxThreshold int       `json:"max_threshold"`
	LastUpdated  time.Time `json:"last_updated"`
	// Movements is most-recent-first and capped by the ledger.
	Movements []Movement `json:"movements,omitempty"`
}
