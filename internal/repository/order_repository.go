package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/foodops/orderflow/common/errors"
	"github.com/foodops/orderflow/internal/domain"
)

// StatusUpdate is a guarded order-status mutation. The write only applies when
// the stored status still equals ExpectedStatus, which is how concurrent
// transition requests on the same order are serialized.
type StatusUpdate struct {
	TenantID       string
	OrderID        string
	ExpectedStatus domain.Status
	NewStatus      domain.Status
	ChefID         string
	CourierID      string
	Closed         bool
	// ClearCheckpoints drops every stored continuation token in the same
	// write. Set when the transition moves the order out of a waiting status,
	// so no token can outlive the status that justified it.
	ClearCheckpoints bool
}

// OrderRepository persists order aggregates keyed by (tenant_id, order_id).
type OrderRepository interface {
	CreateTx(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	Find(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
	// UpdateStatus applies a guarded status change. Returns false when the
	// guard failed (the order moved on under a concurrent request).
	UpdateStatus(ctx context.Context, upd StatusUpdate) (bool, error)
	// SetCheckpoint stores the stage's continuation token and moves the order
	// to the stage's waiting status. An existing token is overwritten. The
	// write only applies while the stored status still equals expected;
	// returns false when the guard failed.
	SetCheckpoint(ctx context.Context, tenantID, orderID string, stage domain.Stage, token string, expected, waiting domain.Status) (bool, error)
	// ResolveCheckpoint clears the stage's token and applies the status
	// change in one write. Returns false when no token was stored for the
	// stage or the status guard failed.
	ResolveCheckpoint(ctx context.Context, tenantID, orderID string, stage domain.Stage, upd StatusUpdate) (bool, error)
}

type orderRepository struct {
	db    *sql.DB
	table string
}

// NewOrderRepository creates a Postgres order repository writing to the given
// table.
func NewOrderRepository(db *sql.DB, table string) OrderRepository {
	return &orderRepository{db: db, table: table}
}

func (r *orderRepository) CreateTx(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSerializationError, "failed to marshal line items", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, order_id, user_id, status, items, total_price,
			delivery_address, phone, notes, payment_method, pending_checkpoints,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '{}', $11, $12)
	`, r.table)

	_, err = tx.ExecContext(ctx, query,
		order.TenantID,
		order.OrderID,
		order.UserID,
		order.Status,
		items,
		order.TotalPrice,
		order.DeliveryAddress,
		order.Phone,
		order.Notes,
		order.PaymentMethod,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to create order", err)
	}

	return nil
}

func (r *orderRepository) Find(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT tenant_id, order_id, user_id, status, items, total_price,
			delivery_address, phone, notes, payment_method, chef_id, courier_id,
			pending_checkpoints, created_at, updated_at, closed_at
		FROM %s
		WHERE tenant_id = $1 AND order_id = $2
	`, r.table)

	var (
		order       domain.Order
		items       []byte
		checkpoints []byte
		chefID      sql.NullString
		courierID   sql.NullString
		closedAt    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, tenantID, orderID).Scan(
		&order.TenantID,
		&order.OrderID,
		&order.UserID,
		&order.Status,
		&items,
		&order.TotalPrice,
		&order.DeliveryAddress,
		&order.Phone,
		&order.Notes,
		&order.PaymentMethod,
		&chefID,
		&courierID,
		&checkpoints,
		&order.CreatedAt,
		&order.UpdatedAt,
		&closedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to find order", err)
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSerializationError, "failed to unmarshal line items", err)
	}
	if err := json.Unmarshal(checkpoints, &order.PendingCheckpoints); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSerializationError, "failed to unmarshal checkpoints", err)
	}
	order.ChefID = chefID.String
	order.CourierID = courierID.String
	if closedAt.Valid {
		t := closedAt.Time
		order.ClosedAt = &t
	}

	return &order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, upd StatusUpdate) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1,
			chef_id = COALESCE(NULLIF($2, ''), chef_id),
			courier_id = COALESCE(NULLIF($3, ''), courier_id),
			closed_at = CASE WHEN $4 THEN NOW() ELSE closed_at END,
			pending_checkpoints = CASE WHEN $5 THEN '{}'::jsonb ELSE pending_checkpoints END,
			updated_at = NOW()
		WHERE tenant_id = $6 AND order_id = $7 AND status = $8
	`, r.table)

	result, err := r.db.ExecContext(ctx, query,
		upd.NewStatus, upd.ChefID, upd.CourierID, upd.Closed, upd.ClearCheckpoints,
		upd.TenantID, upd.OrderID, upd.ExpectedStatus)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDatabaseError, "failed to update order status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDatabaseError, "failed to get rows affected", err)
	}
	return affected > 0, nil
}

func (r *orderRepository) SetCheckpoint(ctx context.Context, tenantID, orderID string, stage domain.Stage, token string, expected, waiting domain.Status) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET pending_checkpoints = jsonb_set(pending_checkpoints, ARRAY[$1], to_jsonb($2::text)),
			status = $3,
			updated_at = NOW()
		WHERE tenant_id = $4 AND order_id = $5 AND status = $6
	`, r.table)

	result, err := r.db.ExecContext(ctx, query, string(stage), token, waiting, tenantID, orderID, expected)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDatabaseError, "failed to store checkpoint token", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDatabaseError, "failed to get rows affected", err)
	}
	return affected > 0, nil
}

func (r *orderRepository) ResolveCheckpoint(ctx context.Context, tenantID, orderID string, stage domain.Stage, upd StatusUpdate) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET pending_checkpoints = pending_checkpoints - $1,
			status = $2,
			chef_id = COALESCE(NULLIF($3, ''), chef_id),
			courier_id = COALESCE(NULLIF($4, ''), courier_id),
			closed_at = CASE WHEN $5 THEN NOW() ELSE closed_at END,
			updated_at = NOW()
		WHERE tenant_id = $6 AND order_id = $7
			AND pending_checkpoints ? $1
			AND status = $8
	`, r.table)

	result, err := r.db.ExecContext(ctx, query,
		string(stage), upd.NewStatus, upd.ChefID, upd.CourierID, upd.Closed,
		tenantID, orderID, upd.ExpectedStatus)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDatabaseError, "failed to resolve checkpoint", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDatabaseError, "failed to get rows affected", err)
	}
	return affected > 0, nil
}
