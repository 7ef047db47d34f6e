package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/foodops/orderflow/common/errors"
	"github.com/foodops/orderflow/internal/domain"
)

// HistoryRepository appends order state-transition records. The table is
// append-only: entries are never updated or deleted.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.StateHistoryEntry) error
	ListByOrder(ctx context.Context, tenantID, orderID string) ([]*domain.StateHistoryEntry, error)
}

type historyRepository struct {
	db    *sql.DB
	table string
}

// NewHistoryRepository creates a Postgres history repository writing to the
// given table.
func NewHistoryRepository(db *sql.DB, table string) HistoryRepository {
	return &historyRepository{db: db, table: table}
}

func (r *historyRepository) Append(ctx context.Context, entry *domain.StateHistoryEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (entry_id, order_id, tenant_id, previous_state, new_state,
			ts, actor_id, actor_role, reason, start_time, end_time, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		entry.EntryID,
		entry.OrderID,
		entry.TenantID,
		entry.PreviousState,
		entry.NewState,
		entry.Timestamp,
		entry.ActorID,
		entry.ActorRole,
		entry.Reason,
		entry.StartTime,
		entry.EndTime,
		entry.DurationSeconds,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to append history entry", err)
	}
	return nil
}

func (r *historyRepository) ListByOrder(ctx context.Context, tenantID, orderID string) ([]*domain.StateHistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT entry_id, order_id, tenant_id, previous_state, new_state,
			ts, actor_id, actor_role, reason, start_time, end_time, duration_seconds
		FROM %s
		WHERE tenant_id = $1 AND order_id = $2
		ORDER BY ts ASC
	`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to list history entries", err)
	}
	defer rows.Close()

	var entries []*domain.StateHistoryEntry
	for rows.Next() {
		entry := &domain.StateHistoryEntry{}
		if err := rows.Scan(
			&entry.EntryID,
			&entry.OrderID,
			&entry.TenantID,
			&entry.PreviousState,
			&entry.NewState,
			&entry.Timestamp,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.Reason,
			&entry.StartTime,
			&entry.EndTime,
			&entry.DurationSeconds,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan history entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to iterate history entries", err)
	}
	return entries, nil
}
