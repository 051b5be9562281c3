package storage

import (
	"context"
	"time"

	"remindd/internal/reminder"
)

// InsertOccasion records rec unless (task_id, occasion_key) already exists.
// inserted is false when another caller got there first; that is not an error.
func (s *Store) InsertOccasion(ctx context.Context, rec reminder.OccasionRecord) (inserted bool, err error) {
	res, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO occasions(task_id, occasion_key, kind, threshold, recorded_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(task_id, occasion_key) DO NOTHING`),
		rec.TaskID, rec.Key, string(rec.Kind), rec.Threshold, toMillis(rec.RecordedAt),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) OccasionExists(ctx context.Context, taskID int64, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM occasions WHERE task_id = ? AND occasion_key = ?`), taskID, key).Scan(&n)
	return n > 0, err
}

func (s *Store) DeleteOccasion(ctx context.Context, taskID int64, key string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM occasions WHERE task_id = ? AND occasion_key = ?`), taskID, key)
	return err
}

func (s *Store) DeleteTaskOccasions(ctx context.Context, taskID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM occasions WHERE task_id = ?`), taskID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOccasionsBefore removes records recorded strictly before cutoff.
func (s *Store) DeleteOccasionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM occasions WHERE recorded_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListOccasions returns the records of one task (taskID > 0) or all records, newest first.
func (s *Store) ListOccasions(ctx context.Context, taskID int64) ([]reminder.OccasionRecord, error) {
	query := `SELECT task_id, occasion_key, kind, threshold, recorded_at FROM occasions`
	var args []any
	if taskID > 0 {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY recorded_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminder.OccasionRecord
	for rows.Next() {
		var (
			rec  reminder.OccasionRecord
			kind string
			ms   int64
		)
		if err := rows.Scan(&rec.TaskID, &rec.Key, &kind, &rec.Threshold, &ms); err != nil {
			return nil, err
		}
		rec.Kind = reminder.Kind(kind)
		rec.RecordedAt = fromMillis(ms)
		out = append(out, rec)
	}
	return out, rows.Err()
}
