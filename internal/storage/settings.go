package storage

import (
	"context"
	"time"

	"remindd/internal/reminder"
)

// DefaultSettings are seeded into an empty settings table:
// a one-time notice a month ahead, then daily from a week out.
var DefaultSettings = []int{30, 7, 1, 0}

// ActiveSettings returns the active reminder settings, largest threshold first.
func (s *Store) ActiveSettings(ctx context.Context) ([]reminder.Setting, error) {
	return s.querySettings(ctx, `SELECT id, days_before, active, created_at FROM reminder_settings WHERE active = 1 ORDER BY days_before DESC, id`)
}

func (s *Store) ListSettings(ctx context.Context) ([]reminder.Setting, error) {
	return s.querySettings(ctx, `SELECT id, days_before, active, created_at FROM reminder_settings ORDER BY days_before DESC, id`)
}

func (s *Store) querySettings(ctx context.Context, query string, args ...any) ([]reminder.Setting, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminder.Setting
	for rows.Next() {
		var (
			st     reminder.Setting
			active int
			ms     int64
		)
		if err := rows.Scan(&st.ID, &st.DaysBefore, &active, &ms); err != nil {
			return nil, err
		}
		st.Active = active != 0
		st.CreatedAt = fromMillis(ms)
		out = append(out, st)
	}
	return out, rows.Err()
}

// HasActiveSetting reports whether an active setting with daysBefore exists.
func (s *Store) HasActiveSetting(ctx context.Context, daysBefore int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM reminder_settings WHERE days_before = ? AND active = 1`), daysBefore).Scan(&n)
	return n > 0, err
}

func (s *Store) AddSetting(ctx context.Context, daysBefore int) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO reminder_settings(days_before, active, created_at) VALUES(?,1,?) RETURNING id`),
		daysBefore, toMillis(time.Time{}),
	).Scan(&id)
	return id, err
}

func (s *Store) DeleteSetting(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM reminder_settings WHERE id = ?`), id)
	return affectedOne(res, err)
}

func (s *Store) SetSettingActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE reminder_settings SET active = ? WHERE id = ?`), boolInt(active), id)
	return affectedOne(res, err)
}

// SeedDefaultSettings inserts DefaultSettings when the table is empty.
// It returns the number of rows inserted.
func (s *Store) SeedDefaultSettings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reminder_settings`).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for _, d := range DefaultSettings {
		if _, err := s.AddSetting(ctx, d); err != nil {
			return 0, err
		}
	}
	return len(DefaultSettings), nil
}
