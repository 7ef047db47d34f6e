package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foodops/orderflow/common/errors"
)

// OutboxEvent is an event staged for publication alongside the write that
// produced it.
type OutboxEvent struct {
	ID            int64
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	Status        string
	CreatedAt     time.Time
}

// OutboxRepository stages and drains events for the outbox worker.
type OutboxRepository interface {
	Insert(ctx context.Context, event *OutboxEvent) error
	InsertTx(ctx context.Context, tx *sql.Tx, event *OutboxEvent) error
	FindPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkSent(ctx context.Context, id int64) error
}

type outboxRepository struct {
	db    *sql.DB
	table string
}

// NewOutboxRepository creates a Postgres outbox repository writing to the
// given table.
func NewOutboxRepository(db *sql.DB, table string) OutboxRepository {
	return &outboxRepository{db: db, table: table}
}

func (r *outboxRepository) Insert(ctx context.Context, event *OutboxEvent) error {
	_, err := r.db.ExecContext(ctx, r.insertQuery(),
		event.AggregateType, event.AggregateID, event.EventType, []byte(event.Payload))
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to insert outbox event", err)
	}
	return nil
}

func (r *outboxRepository) InsertTx(ctx context.Context, tx *sql.Tx, event *OutboxEvent) error {
	_, err := tx.ExecContext(ctx, r.insertQuery(),
		event.AggregateType, event.AggregateID, event.EventType, []byte(event.Payload))
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to insert outbox event", err)
	}
	return nil
}

func (r *outboxRepository) insertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %s (aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, 'PENDING', NOW())
	`, r.table)
}

func (r *outboxRepository) FindPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status, created_at
		FROM %s
		WHERE status = 'PENDING'
		ORDER BY id ASC
		LIMIT $1
	`, r.table)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to find pending outbox events", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		event := &OutboxEvent{}
		var payload []byte
		if err := rows.Scan(
			&event.ID,
			&event.AggregateType,
			&event.AggregateID,
			&event.EventType,
			&payload,
			&event.Status,
			&event.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan outbox event", err)
		}
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to iterate outbox events", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`UPDATE %s SET status = 'SENT' WHERE id = $1`, r.table)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to mark outbox event as sent", err)
	}
	return nil
}
