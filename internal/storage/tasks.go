package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"remindd/internal/reminder"
)

const taskColumns = `id, title, description, due_date, priority, status, target_id, notify_at, timezone, revision, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (reminder.Task, error) {
	var (
		t  reminder.Task
		ms int64
	)
	err := r.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Priority, &t.Status, &t.TargetID, &t.NotifyAt, &t.Timezone, &t.Revision, &ms)
	if err != nil {
		return reminder.Task{}, err
	}
	t.CreatedAt = fromMillis(ms)
	return t, nil
}

// CreateTask inserts t and returns its new id.
func (s *Store) CreateTask(ctx context.Context, t reminder.Task) (int64, error) {
	if strings.TrimSpace(t.Status) == "" {
		t.Status = reminder.StatusOpen
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO tasks(title, description, due_date, priority, status, target_id, notify_at, timezone, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?) RETURNING id`),
		t.Title, t.Description, t.DueDate, t.Priority, t.Status, t.TargetID, t.NotifyAt, t.Timezone, toMillis(t.CreatedAt),
	).Scan(&id)
	return id, err
}

func (s *Store) GetTask(ctx context.Context, id int64) (reminder.Task, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reminder.Task{}, ErrNotFound
	}
	return t, err
}

// UpdateTask rewrites the editable fields of t and bumps its revision.
// Status is left alone.
func (s *Store) UpdateTask(ctx context.Context, t reminder.Task) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE tasks SET title = ?, description = ?, due_date = ?, priority = ?, target_id = ?, notify_at = ?, timezone = ?,
		 revision = revision + 1
		 WHERE id = ?`),
		t.Title, t.Description, t.DueDate, t.Priority, t.TargetID, t.NotifyAt, t.Timezone, t.ID,
	)
	return affectedOne(res, err)
}

func (s *Store) SetTaskStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE tasks SET status = ?, revision = revision + 1 WHERE id = ?`), status, id)
	return affectedOne(res, err)
}

// TaskRevision returns the current revision of a task. ok is false when the
// task no longer exists.
func (s *Store) TaskRevision(ctx context.Context, id int64) (rev int64, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, s.q(`SELECT revision FROM tasks WHERE id = ?`), id).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rev, true, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE id = ?`), id)
	return affectedOne(res, err)
}

func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]reminder.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if st := strings.TrimSpace(f.Status); st != "" {
		query += ` WHERE status = ?`
		args = append(args, st)
	}
	query += ` ORDER BY id`
	return s.queryTasks(ctx, query, args...)
}

// OpenTasks lists open tasks that carry a due date; these are the ones the
// scheduler evaluates every tick.
func (s *Store) OpenTasks(ctx context.Context) ([]reminder.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = ? AND due_date <> '' ORDER BY id`,
		reminder.StatusOpen,
	)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]reminder.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminder.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
