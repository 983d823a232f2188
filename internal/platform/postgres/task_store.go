package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/avellar/mangrove/internal/store"
	"github.com/avellar/mangrove/internal/task"
)

// PostgresTaskStore implements the task.Store interface using PostgreSQL.
//
// Claim safety relies on FOR UPDATE SKIP LOCKED: two workers racing for
// the head of the queue lock different rows, so a task is handed out at
// most once. FIFO order within a priority comes from the bigserial seq
// column, which upserts never touch.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// Ensure PostgresTaskStore implements task.Store interface
var _ task.Store = (*PostgresTaskStore)(nil)

// Save implements task.Store.Save. A conflicting unique id keeps the
// existing row and its seq, refreshing only the priority.
func (s *PostgresTaskStore) Save(ctx context.Context, t task.Task) error {
	payload, err := task.EncodePayload(t)
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}

	query := `
		INSERT INTO tasks (unique_id, kind, payload, priority, group_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unique_id) DO UPDATE SET priority = EXCLUDED.priority
	`
	_, err = s.db.ExecContext(ctx, query,
		t.UniqueID(),
		t.Kind(),
		payload,
		task.ClampPriority(t.Priority()),
		t.GroupID(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// SaveAll implements task.Store.SaveAll.
func (s *PostgresTaskStore) SaveAll(ctx context.Context, tasks []task.Task) error {
	for _, t := range tasks {
		if err := s.Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// HasAvailable implements task.Store.HasAvailable.
func (s *PostgresTaskStore) HasAvailable(ctx context.Context) (bool, error) {
	var available bool
	query := `SELECT EXISTS (SELECT 1 FROM tasks WHERE owner IS NULL)`
	if err := s.db.QueryRowContext(ctx, query).Scan(&available); err != nil {
		return false, fmt.Errorf("failed to check for available tasks: %w", err)
	}
	return available, nil
}

// TakeFirst implements task.Store.TakeFirst.
func (s *PostgresTaskStore) TakeFirst(ctx context.Context, owner string) (task.Task, error) {
	query := `
		WITH next AS (
			SELECT unique_id
			FROM tasks
			WHERE owner IS NULL
			ORDER BY priority DESC, seq ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE tasks t
		SET owner = $1
		FROM next
		WHERE t.unique_id = next.unique_id
		RETURNING t.kind, t.payload, t.priority, t.group_id
	`

	var (
		kind     string
		payload  []byte
		priority int
		groupID  string
	)
	err := s.db.QueryRowContext(ctx, query, owner).Scan(&kind, &payload, &priority, &groupID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	t, err := task.DecodeTask(kind, payload, priority, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to decode claimed task: %w", err)
	}
	return t, nil
}

// Delete implements task.Store.Delete.
func (s *PostgresTaskStore) Delete(ctx context.Context, uniqueID string) error {
	query := `DELETE FROM tasks WHERE unique_id = $1`
	if _, err := s.db.ExecContext(ctx, query, uniqueID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// DeleteAllWithoutOwner implements task.Store.DeleteAllWithoutOwner.
func (s *PostgresTaskStore) DeleteAllWithoutOwner(ctx context.Context) (int64, error) {
	query := `DELETE FROM tasks WHERE owner IS NULL`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unclaimed tasks: %w", err)
	}
	return result.RowsAffected()
}

// DeleteAll implements task.Store.DeleteAll.
func (s *PostgresTaskStore) DeleteAll(ctx context.Context) (int64, error) {
	query := `DELETE FROM tasks`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return result.RowsAffected()
}

// Disown implements task.Store.Disown.
func (s *PostgresTaskStore) Disown(ctx context.Context) (int64, error) {
	query := `UPDATE tasks SET owner = NULL WHERE owner IS NOT NULL`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to disown tasks: %w", err)
	}
	return result.RowsAffected()
}

// CountByKind implements task.Store.CountByKind.
func (s *PostgresTaskStore) CountByKind(ctx context.Context) (map[string]int, error) {
	query := `SELECT kind, COUNT(*) FROM tasks GROUP BY kind`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task counts: %w", err)
	}
	return counts, nil
}
