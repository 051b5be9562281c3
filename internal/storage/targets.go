package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"remindd/internal/reminder"
)

const targetColumns = `id, name, kind, address, description, active, created_at`

func scanTarget(r rowScanner) (reminder.Target, error) {
	var (
		t      reminder.Target
		active int
		ms     int64
	)
	if err := r.Scan(&t.ID, &t.Name, &t.Kind, &t.Address, &t.Description, &active, &ms); err != nil {
		return reminder.Target{}, err
	}
	t.Active = active != 0
	t.CreatedAt = fromMillis(ms)
	return t, nil
}

// Target resolves an active delivery target. ok is false when the target
// does not exist or is deactivated.
func (s *Store) Target(ctx context.Context, id int64) (reminder.Target, bool, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+targetColumns+` FROM targets WHERE id = ? AND active = 1`), id)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reminder.Target{}, false, nil
	}
	if err != nil {
		return reminder.Target{}, false, err
	}
	return t, true, nil
}

func (s *Store) ListTargets(ctx context.Context) ([]reminder.Target, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminder.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) AddTarget(ctx context.Context, t reminder.Target) (int64, error) {
	kind := strings.ToLower(strings.TrimSpace(t.Kind))
	if kind == "" {
		kind = reminder.TargetWeCom
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO targets(name, kind, address, description, active, created_at) VALUES(?,?,?,?,1,?) RETURNING id`),
		t.Name, kind, t.Address, t.Description, toMillis(t.CreatedAt),
	).Scan(&id)
	return id, err
}

func (s *Store) SetTargetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE targets SET active = ? WHERE id = ?`), boolInt(active), id)
	return affectedOne(res, err)
}

func (s *Store) DeleteTarget(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM targets WHERE id = ?`), id)
	return affectedOne(res, err)
}
