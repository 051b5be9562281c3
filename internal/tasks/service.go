// Package tasks is the mutation boundary for tasks, reminder settings and
// targets. Every change that can alter which occasions a task has releases
// the task's occasion records once the row is written. The row's revision
// bump tells a running scheduler in another process to drop what it cached.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindd/internal/dispatch"
	"remindd/internal/reminder"
	"remindd/internal/storage"
	logx "remindd/pkg/logx"
)

var (
	ErrNotFound      = errors.New("tasks: not found")
	ErrInvalid       = errors.New("tasks: invalid input")
	ErrSettingExists = errors.New("tasks: an active setting with these days already exists")
)

var priorities = map[string]bool{"low": true, "medium": true, "high": true}

// Repository is the storage surface the service mutates.
type Repository interface {
	CreateTask(ctx context.Context, t reminder.Task) (int64, error)
	GetTask(ctx context.Context, id int64) (reminder.Task, error)
	UpdateTask(ctx context.Context, t reminder.Task) error
	SetTaskStatus(ctx context.Context, id int64, status string) error
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, f storage.TaskFilter) ([]reminder.Task, error)

	ListSettings(ctx context.Context) ([]reminder.Setting, error)
	HasActiveSetting(ctx context.Context, daysBefore int) (bool, error)
	AddSetting(ctx context.Context, daysBefore int) (int64, error)
	DeleteSetting(ctx context.Context, id int64) error
	SetSettingActive(ctx context.Context, id int64, active bool) error

	Target(ctx context.Context, id int64) (reminder.Target, bool, error)
	ListTargets(ctx context.Context) ([]reminder.Target, error)
	AddTarget(ctx context.Context, t reminder.Target) (int64, error)
	SetTargetActive(ctx context.Context, id int64, active bool) error
	DeleteTarget(ctx context.Context, id int64) error
}

// Invalidator drops every occasion record of a task.
type Invalidator interface {
	ReleaseTask(ctx context.Context, taskID int64) (int64, error)
}

type Sender interface {
	Send(ctx context.Context, targetID int64, text string) dispatch.Result
}

// Config holds the fallbacks applied to new tasks.
type Config struct {
	DefaultTimezone string
	DefaultNotifyAt string
}

type Service struct {
	repo   Repository
	ledger Invalidator
	sender Sender
	cfg    Config
	clock  reminder.Clock
	log    logx.Logger
}

func New(cfg Config, repo Repository, ledger Invalidator, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "Asia/Shanghai"
	}
	if cfg.DefaultNotifyAt == "" {
		cfg.DefaultNotifyAt = "10:30"
	}
	return &Service{repo: repo, ledger: ledger, sender: sender, cfg: cfg, clock: reminder.SystemClock(), log: log}
}

// Notice is the outcome of a best-effort informational message. A zero
// Notice means nothing was attempted (no target).
type Notice struct {
	Attempted bool
	Result    dispatch.Result
}

// Create validates and stores a new open task, then notifies its target.
func (s *Service) Create(ctx context.Context, t reminder.Task) (reminder.Task, Notice, error) {
	t.Status = reminder.StatusOpen
	if err := s.normalize(&t); err != nil {
		return reminder.Task{}, Notice{}, err
	}
	id, err := s.repo.CreateTask(ctx, t)
	if err != nil {
		return reminder.Task{}, Notice{}, fmt.Errorf("create task: %w", err)
	}
	created, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return reminder.Task{}, Notice{}, s.mapErr("load task", err)
	}
	s.log.Info("task created", logx.Int64("task", id), logx.String("due", created.DueDate))
	return created, s.notify(ctx, created, reminder.RenderCreated(created, s.clock.Now())), nil
}

// Update replaces the editable fields of a task.
func (s *Service) Update(ctx context.Context, t reminder.Task) (reminder.Task, error) {
	cur, err := s.repo.GetTask(ctx, t.ID)
	if err != nil {
		return reminder.Task{}, s.mapErr("load task", err)
	}
	t.Status = cur.Status
	t.CreatedAt = cur.CreatedAt
	if err := s.normalize(&t); err != nil {
		return reminder.Task{}, err
	}
	if err := s.repo.UpdateTask(ctx, t); err != nil {
		return reminder.Task{}, s.mapErr("update task", err)
	}
	if err := s.release(ctx, t.ID); err != nil {
		return reminder.Task{}, err
	}
	s.log.Info("task updated", logx.Int64("task", t.ID))
	return s.load(ctx, t.ID)
}

// Complete marks a task done and notifies its target.
func (s *Service) Complete(ctx context.Context, id int64) (reminder.Task, Notice, error) {
	if _, err := s.repo.GetTask(ctx, id); err != nil {
		return reminder.Task{}, Notice{}, s.mapErr("load task", err)
	}
	if err := s.repo.SetTaskStatus(ctx, id, reminder.StatusDone); err != nil {
		return reminder.Task{}, Notice{}, s.mapErr("complete task", err)
	}
	if err := s.release(ctx, id); err != nil {
		return reminder.Task{}, Notice{}, err
	}
	done, err := s.load(ctx, id)
	if err != nil {
		return reminder.Task{}, Notice{}, err
	}
	s.log.Info("task completed", logx.Int64("task", id))
	return done, s.notify(ctx, done, reminder.RenderCompleted(done, s.clock.Now())), nil
}

// Reopen puts a done task back into the scan.
func (s *Service) Reopen(ctx context.Context, id int64) (reminder.Task, error) {
	if err := s.repo.SetTaskStatus(ctx, id, reminder.StatusOpen); err != nil {
		return reminder.Task{}, s.mapErr("reopen task", err)
	}
	if err := s.release(ctx, id); err != nil {
		return reminder.Task{}, err
	}
	return s.load(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return s.mapErr("delete task", err)
	}
	if err := s.release(ctx, id); err != nil {
		return err
	}
	s.log.Info("task deleted", logx.Int64("task", id))
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (reminder.Task, error) { return s.load(ctx, id) }

func (s *Service) List(ctx context.Context, status string) ([]reminder.Task, error) {
	return s.repo.ListTasks(ctx, storage.TaskFilter{Status: status})
}

// AddSetting adds an active "N days before" rule.
func (s *Service) AddSetting(ctx context.Context, daysBefore int) (int64, error) {
	if daysBefore < 0 {
		return 0, fmt.Errorf("%w: days before must be >= 0, got %d", ErrInvalid, daysBefore)
	}
	exists, err := s.repo.HasActiveSetting(ctx, daysBefore)
	if err != nil {
		return 0, fmt.Errorf("check setting: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%w: %d", ErrSettingExists, daysBefore)
	}
	id, err := s.repo.AddSetting(ctx, daysBefore)
	if err != nil {
		return 0, fmt.Errorf("add setting: %w", err)
	}
	s.log.Info("setting added", logx.Int64("id", id), logx.Int("days_before", daysBefore))
	return id, nil
}

func (s *Service) RemoveSetting(ctx context.Context, id int64) error {
	return s.mapErr("delete setting", s.repo.DeleteSetting(ctx, id))
}

func (s *Service) SetSettingActive(ctx context.Context, id int64, active bool) error {
	return s.mapErr("toggle setting", s.repo.SetSettingActive(ctx, id, active))
}

func (s *Service) Settings(ctx context.Context) ([]reminder.Setting, error) {
	return s.repo.ListSettings(ctx)
}

func (s *Service) AddTarget(ctx context.Context, t reminder.Target) (int64, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.Address = strings.TrimSpace(t.Address)
	if t.Kind == "" {
		t.Kind = reminder.TargetWeCom
	}
	switch {
	case t.Name == "":
		return 0, fmt.Errorf("%w: target name is required", ErrInvalid)
	case t.Address == "":
		return 0, fmt.Errorf("%w: target address is required", ErrInvalid)
	}
	switch t.Kind {
	case reminder.TargetWeCom, reminder.TargetWebhook, reminder.TargetTelegram:
	default:
		return 0, fmt.Errorf("%w: unknown target kind %q", ErrInvalid, t.Kind)
	}
	t.Active = true
	id, err := s.repo.AddTarget(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("add target: %w", err)
	}
	return id, nil
}

func (s *Service) RemoveTarget(ctx context.Context, id int64) error {
	return s.mapErr("delete target", s.repo.DeleteTarget(ctx, id))
}

func (s *Service) SetTargetActive(ctx context.Context, id int64, active bool) error {
	return s.mapErr("toggle target", s.repo.SetTargetActive(ctx, id, active))
}

func (s *Service) Targets(ctx context.Context) ([]reminder.Target, error) {
	return s.repo.ListTargets(ctx)
}

// SendTest pushes a test message to an active target.
func (s *Service) SendTest(ctx context.Context, targetID int64) (dispatch.Result, error) {
	t, ok, err := s.repo.Target(ctx, targetID)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("load target: %w", err)
	}
	if !ok {
		return dispatch.Result{}, fmt.Errorf("%w: target %d", ErrNotFound, targetID)
	}
	return s.sender.Send(ctx, targetID, reminder.RenderTest(t.Name, s.clock.Now())), nil
}

func (s *Service) normalize(t *reminder.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	t.DueDate = strings.TrimSpace(t.DueDate)
	t.NotifyAt = strings.TrimSpace(t.NotifyAt)
	t.Timezone = strings.TrimSpace(t.Timezone)
	t.Priority = strings.ToLower(strings.TrimSpace(t.Priority))
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if !priorities[t.Priority] {
		return fmt.Errorf("%w: priority %q", ErrInvalid, t.Priority)
	}
	if t.NotifyAt == "" {
		t.NotifyAt = s.cfg.DefaultNotifyAt
	}
	if t.Timezone == "" {
		t.Timezone = s.cfg.DefaultTimezone
	}
	loc, err := reminder.LoadZone(t.Timezone)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, _, err := reminder.ParseClock(t.NotifyAt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if t.DueDate != "" {
		if _, err := reminder.ParseDueDate(t.DueDate, loc); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

func (s *Service) release(ctx context.Context, id int64) error {
	n, err := s.ledger.ReleaseTask(ctx, id)
	if err != nil {
		return fmt.Errorf("release occasions of task %d: %w", id, err)
	}
	if n > 0 {
		s.log.Debug("occasions released", logx.Int64("task", id), logx.Int64("count", n))
	}
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (reminder.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return reminder.Task{}, s.mapErr("load task", err)
	}
	return t, nil
}

// notify sends an informational message. Failures are logged and reported,
// never returned as errors.
func (s *Service) notify(ctx context.Context, t reminder.Task, text string) Notice {
	if t.TargetID == 0 || s.sender == nil {
		return Notice{}
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	res := s.sender.Send(ctx, t.TargetID, text)
	if !res.OK() {
		s.log.Warn("task notice not delivered", logx.Int64("task", t.ID), logx.String("result", res.String()))
	}
	return Notice{Attempted: true, Result: res}
}

func (s *Service) mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
