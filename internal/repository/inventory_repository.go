package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/foodops/orderflow/common/errors"
	"github.com/foodops/orderflow/internal/domain"
)

// InventoryRepository persists per-tenant, per-product stock records keyed by
// (tenant_id, product_id), with a bounded movement log in a side table.
type InventoryRepository interface {
	Find(ctx context.Context, tenantID, productID string) (*domain.InventoryRecord, error)
	// EnsureRecord lazily creates the record at stock 0 with the given
	// thresholds. Existing records are left untouched.
	EnsureRecord(ctx context.Context, tenantID, productID string, minThreshold, maxThreshold int) error
	// ApplyDelta atomically adds delta to current_stock. Returns false, with
	// no mutation, when the result would go negative or the record does not
	// exist. Two concurrent callers can never both observe the pre-delta
	// value: the guard and the write are a single conditional update.
	ApplyDelta(ctx context.Context, tenantID, productID string, delta int) (bool, error)
	// SetStock writes an absolute stock value, optionally updating thresholds.
	SetStock(ctx context.Context, tenantID, productID string, stock int, minThreshold, maxThreshold *int) error
	// AppendMovement records a movement and prunes the log past limit entries.
	AppendMovement(ctx context.Context, tenantID, productID string, movement domain.Movement, limit int) error
}

type inventoryRepository struct {
	db             *sql.DB
	table          string
	movementsTable string
}

// NewInventoryRepository creates a Postgres inventory repository writing to
// the given tables.
func NewInventoryRepository(db *sql.DB, table, movementsTable string) InventoryRepository {
	return &inventoryRepository{db: db, table: table, movementsTable: movementsTable}
}

func (r *inventoryRepository) Find(ctx context.Context, tenantID, productID string) (*domain.InventoryRecord, error) {
	query := fmt.Sprintf(`
		SELECT tenant_id, product_id, current_stock, min_threshold, max_threshold, last_updated
		FROM %s
		WHERE tenant_id = $1 AND product_id = $2
	`, r.table)

	rec := &domain.InventoryRecord{}
	err := r.db.QueryRowContext(ctx, query, tenantID, productID).Scan(
		&rec.TenantID,
		&rec.ProductID,
		&rec.CurrentStock,
		&rec.MinThreshold,
		&rec.MaxThreshold,
		&rec.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeNotFound, "inventory record for product %s not found", productID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to find inventory record", err)
	}

	movements, err := r.listMovements(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	rec.Movements = movements

	return rec, nil
}

func (r *inventoryRepository) EnsureRecord(ctx context.Context, tenantID, productID string, minThreshold, maxThreshold int) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, product_id, current_stock, min_threshold, max_threshold, last_updated)
		VALUES ($1, $2, 0, $3, $4, NOW())
		ON CONFLICT (tenant_id, product_id) DO NOTHING
	`, r.table)

	if _, err := r.db.ExecContext(ctx, query, tenantID, productID, minThreshold, maxThreshold); err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to create inventory record", err)
	}
	return nil
}

func (r *inventoryRepository) ApplyDelta(ctx context.Context, tenantID, productID string, delta int) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET current_stock = current_stock + $1, last_updated = NOW()
		WHERE tenant_id = $2 AND product_id = $3 AND current_stock + $1 >= 0
	`, r.table)

	result, err := r.db.ExecContext(ctx, query, delta, tenantID, productID)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDatabaseError, "failed to apply stock delta", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDatabaseError, "failed to get rows affected", err)
	}
	return affected > 0, nil
}

func (r *inventoryRepository) SetStock(ctx context.Context, tenantID, productID string, stock int, minThreshold, maxThreshold *int) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET current_stock = $1,
			min_threshold = COALESCE($2, min_threshold),
			max_threshold = COALESCE($3, max_threshold),
			last_updated = NOW()
		WHERE tenant_id = $4 AND product_id = $5
	`, r.table)

	result, err := r.db.ExecContext(ctx, query, stock, minThreshold, maxThreshold, tenantID, productID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to set stock", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to get rows affected", err)
	}
	if affected == 0 {
		return errors.Newf(errors.ErrCodeNotFound, "inventory record for product %s not found", productID)
	}
	return nil
}

func (r *inventoryRepository) AppendMovement(ctx context.Context, tenantID, productID string, movement domain.Movement, limit int) error {
	insert := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, product_id, movement_type, quantity, order_id, reason, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, r.movementsTable)

	_, err := r.db.ExecContext(ctx, insert,
		tenantID, productID, movement.Type, movement.Quantity,
		movement.OrderID, movement.Reason, movement.Timestamp)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to append movement", err)
	}

	prune := fmt.Sprintf(`
		DELETE FROM %s
		WHERE tenant_id = $1 AND product_id = $2 AND id NOT IN (
			SELECT id FROM %s
			WHERE tenant_id = $1 AND product_id = $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		)
	`, r.movementsTable, r.movementsTable)

	if _, err := r.db.ExecContext(ctx, prune, tenantID, productID, limit); err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to prune movement log", err)
	}
	return nil
}

func (r *inventoryRepository) listMovements(ctx context.Context, tenantID, productID string) ([]domain.Movement, error) {
	query := fmt.Sprintf(`
		SELECT movement_type, quantity, COALESCE(order_id, ''), COALESCE(reason, ''), created_at
		FROM %s
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY created_at DESC, id DESC
	`, r.movementsTable)

	rows, err := r.db.QueryContext(ctx, query, tenantID, productID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to list movements", err)
	}
	defer rows.Close()

	var movements []domain.Movement
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(&m.Type, &m.Quantity, &m.OrderID, &m.Reason, &m.Timestamp); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan movement", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to iterate movements", err)
	}
	return movements, nil
}
