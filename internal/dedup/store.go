package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

// ErrStorage wraps unexpected failures of the occasion log. Callers abort the
// current task's occasion for this tick and move on.
var ErrStorage = errors.New("dedup: storage failure")

// Reservation is the outcome of Reserve.
type Reservation int

const (
	// Reserved means this caller owns the occasion and should deliver.
	Reserved Reservation = iota + 1
	// AlreadyReserved means another evaluation recorded the occasion first.
	AlreadyReserved
)

func (r Reservation) String() string {
	switch r {
	case Reserved:
		return "reserved"
	case AlreadyReserved:
		return "already_reserved"
	default:
		return "unknown"
	}
}

// OccasionLog is the durable persistence surface of the store, keyed by
// (task id, occasion key) with a recorded-at timestamp.
type OccasionLog interface {
	InsertOccasion(ctx context.Context, rec reminder.OccasionRecord) (inserted bool, err error)
	OccasionExists(ctx context.Context, taskID int64, key string) (bool, error)
	DeleteOccasion(ctx context.Context, taskID int64, key string) error
	DeleteTaskOccasions(ctx context.Context, taskID int64) (int64, error)
	DeleteOccasionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store records which occasions were acted upon.
//
// Correctness rests on the log's uniqueness constraint: concurrent Reserve
// calls for the same pair yield exactly one Reserved. The cache only saves
// round trips.
type Store struct {
	log   OccasionLog
	cache *Cache
	lg    logx.Logger
}

func New(log OccasionLog, cache *Cache, lg logx.Logger) *Store {
	if cache == nil {
		cache = NewCache()
	}
	if lg.IsZero() {
		lg = logx.Nop()
	}
	return &Store{log: log, cache: cache, lg: lg}
}

// Cache exposes the in-process cache (for diagnostics).
func (s *Store) Cache() *Cache { return s.cache }

// AlreadyHandled checks the cache, then the durable log. A log hit warms the cache.
func (s *Store) AlreadyHandled(ctx context.Context, taskID int64, key string) (bool, error) {
	if s.cache.Has(taskID, key) {
		return true, nil
	}
	ok, err := s.log.OccasionExists(ctx, taskID, key)
	if err != nil {
		return false, fmt.Errorf("%w: lookup %d/%q: %w", ErrStorage, taskID, key, err)
	}
	if ok {
		s.cache.Add(taskID, key)
	}
	return ok, nil
}

// Reserve persists rec unless the same (task, key) is already recorded.
func (s *Store) Reserve(ctx context.Context, r reminder.OccasionRecord) (Reservation, error) {
	if r.Key == "" {
		return 0, fmt.Errorf("%w: empty occasion key for task %d", ErrStorage, r.TaskID)
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}
	inserted, err := s.log.InsertOccasion(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("%w: reserve %d/%q: %w", ErrStorage, r.TaskID, r.Key, err)
	}
	s.cache.Add(r.TaskID, r.Key)
	if !inserted {
		s.lg.Debug("occasion already reserved", logx.Int64("task", r.TaskID), logx.String("key", r.Key))
		return AlreadyReserved, nil
	}
	return Reserved, nil
}

// Release undoes a reservation so a later tick may retry the occasion.
func (s *Store) Release(ctx context.Context, taskID int64, key string) error {
	s.cache.Remove(taskID, key)
	if err := s.log.DeleteOccasion(ctx, taskID, key); err != nil {
		return fmt.Errorf("%w: release %d/%q: %w", ErrStorage, taskID, key, err)
	}
	return nil
}

// ReleaseTask drops every occasion of a task. The CRUD side calls it when a
// task is edited, completed or deleted, so stale occasions never block it.
func (s *Store) ReleaseTask(ctx context.Context, taskID int64) (int64, error) {
	evicted := s.cache.RemoveTask(taskID)
	n, err := s.log.DeleteTaskOccasions(ctx, taskID)
	if err != nil {
		return 0, fmt.Errorf("%w: release task %d: %w", ErrStorage, taskID, err)
	}
	s.lg.Debug("task occasions released", logx.Int64("task", taskID), logx.Int64("deleted", n), logx.Int("evicted", evicted))
	return n, nil
}

// EvictTask forgets the cached keys of a task without touching the durable
// log. The scan loop calls it when another process rewrote the task.
func (s *Store) EvictTask(taskID int64) int {
	return s.cache.RemoveTask(taskID)
}

// SweepOlderThan deletes durable records recorded before cutoff. The cache is
// left as is; a stale cached key only suppresses an occasion that was already sent.
func (s *Store) SweepOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.log.DeleteOccasionsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep before %s: %w", ErrStorage, cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}
