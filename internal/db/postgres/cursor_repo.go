package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type postgresCursorRepo struct {
	db *sql.DB
}

// NewCursorRepository creates the durable firehose cursor repository.
// The cursor is a singleton row; GREATEST ensures it never moves backwards
// even if a stale debounced write lands late.
func NewCursorRepository(db *sql.DB) *postgresCursorRepo {
	return &postgresCursorRepo{db: db}
}

// Get returns the persisted cursor and whether one exists
func (r *postgresCursorRepo) Get(ctx context.Context) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT event_id FROM firehose_cursor WHERE name = 'default'`,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get firehose cursor: %w", err)
	}
	return id, true, nil
}

// Save upserts the cursor, never decreasing it
func (r *postgresCursorRepo) Save(ctx context.Context, id int64) error {
	query := `
		INSERT INTO firehose_cursor (name, event_id, updated_at)
		VALUES ('default', $1, NOW())
		ON CONFLICT (name)
		DO UPDATE SET event_id = GREATEST(firehose_cursor.event_id, $1), updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to save firehose cursor: %w", err)
	}
	return nil
}
