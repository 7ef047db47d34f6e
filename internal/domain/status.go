package domain

import (
	"sort"
	"strings"

	"github.com/foodops/orderflow/common/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPreparing   Status = "preparing"
	StatusDispatching Status = "dispatching"
	StatusDispatched  Status = "dispatched"
	StatusPickingUp   Status = "picking_up"
	StatusEnRoute     Status = "en_route"
	StatusDelivered   Status = "delivered"
	StatusCanceled    Status = "canceled"
	StatusRejected    Status = "rejected"
)

// ActorRole is the kind of actor requesting a transition.
type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleStaff    ActorRole = "staff"
)

// transitions is the legal order-status graph. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusPending:     {StatusPreparing, StatusCanceled, StatusRejected},
	StatusPreparing:   {StatusDispatching, StatusCanceled},
	StatusDispatching: {StatusDispatched, StatusCanceled},
	StatusDispatched:  {StatusPickingUp, StatusCanceled},
	StatusPickingUp:   {StatusEnRoute, StatusCanceled},
	StatusEnRoute:     {StatusDelivered, StatusCanceled},
}

// AllStatuses lists every valid status.
func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusPreparing, StatusDispatching, StatusDispatched,
		StatusPickingUp, StatusEnRoute, StatusDelivered, StatusCanceled,
		StatusRejected,
	}
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no outgoing transition.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCanceled, StatusRejected:
		return true
	}
	return false
}

// AllowedNext returns the statuses reachable from current, sorted for stable
// error messages. Terminal and unknown statuses return nil.
func AllowedNext(current Status) []Status {
	next := transitions[current]
	out := make([]Status, len(next))
	copy(out, next)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateTransition checks that requested is a legal next status for current.
// The returned error names the allowed next states.
func ValidateTransition(current, requested Status) error {
	if !current.Valid() {
		return errors.Newf(errors.ErrCodeValidation, "unknown status %q", current)
	}
	if !requested.Valid() {
		return errors.Newf(errors.ErrCodeValidation, "unknown status %q", requested)
	}

	allowed := AllowedNext(current)
	for _, s := range allowed {
		if s == requested {
			return nil
		}
	}

	if current.Terminal() {
		return errors.Newf(errors.ErrCodeValidation,
			"status %q is terminal, no transitions allowed", current)
	}
	return errors.Newf(errors.ErrCodeValidation,
		"cannot transition from %q to %q, allowed: %s",
		current, requested, joinStatuses(allowed))
}

// ValidateActorTransition layers the role gate over the transition table:
// customers may only cancel, and only while the order is still pending. The
// fine-grained permission check for staff belongs to the auth collaborator and
// is assumed to have passed.
func ValidateActorTransition(current, requested Status, role ActorRole) error {
	if role == RoleCustomer {
		if requested != StatusCanceled || current != StatusPending {
			return errors.New(errors.ErrCodeForbidden,
				"customers may only cancel pending orders")
		}
	}
	return ValidateTransition(current, requested)
}

func joinStatuses(statuses []Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
