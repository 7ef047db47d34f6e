package domain

import "time"

// StateHistoryEntry records one order-status transition. Entries are
// append-only: they are never mutated or deleted.
type StateHistoryEntry struct {
	EntryID       string     `json:"entry_id"`
	OrderID       string     `json:"order_id"`
	TenantID      string     `json:"tenant_id"`
	PreviousState Status     `json:"previous_state"`
	NewState      Status     `json:"new_state"`
	Timestamp     time.Time  `json:"timestamp"`
	ActorID       string     `json:"actor_id"`
	ActorRole     ActorRole  `json:"actor_role"`
	Reason        string     `json:"reason,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       time.Time  `json:"end_time"`
	// DurationSeconds is EndTime-StartTime; nil when no prior start is known.
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
}
