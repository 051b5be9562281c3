package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"remindd/internal/app"
	"remindd/internal/reminder"
	"remindd/internal/tasks"
)

type taskView struct {
	ID          int64  `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Priority    string `json:"priority" yaml:"priority"`
	DueDate     string `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	NotifyAt    string `json:"notify_at" yaml:"notify_at"`
	Timezone    string `json:"timezone" yaml:"timezone"`
	Status      string `json:"status" yaml:"status"`
	TargetID    int64  `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
	Notice      string `json:"notice,omitempty" yaml:"notice,omitempty"`
}

func viewTask(t reminder.Task) taskView {
	return taskView{
		ID: t.ID, Title: t.Title, Description: t.Description, Priority: t.Priority,
		DueDate: t.DueDate, NotifyAt: t.NotifyAt, Timezone: t.Timezone, Status: t.Status,
		TargetID: t.TargetID, CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

func noticeText(n tasks.Notice) string {
	if !n.Attempted {
		return ""
	}
	return n.Result.String()
}

func taskCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage todo tasks",
	}
	cmd.AddCommand(taskAddCmd(f), taskListCmd(f), taskUpdateCmd(f), taskDoneCmd(f), taskReopenCmd(f), taskDeleteCmd(f))
	return cmd
}

type taskFields struct {
	title, description, priority, due, notifyAt, timezone string
	target                                                int64
}

func (tf *taskFields) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&tf.title, "title", "", "Task title")
	fl.StringVar(&tf.description, "description", "", "Longer description")
	fl.StringVar(&tf.priority, "priority", "", "low, medium or high (default medium)")
	fl.StringVar(&tf.due, "due", "", "Due date YYYY-MM-DD in the task timezone (empty: no deadline)")
	fl.StringVar(&tf.notifyAt, "at", "", "Notification time HH:MM (default from config)")
	fl.StringVar(&tf.timezone, "tz", "", "IANA timezone (default from config)")
	fl.Int64Var(&tf.target, "target", 0, "Target id reminders are sent to")
}

// applyTo copies the flags the user set onto t.
func (tf *taskFields) applyTo(cmd *cobra.Command, t *reminder.Task) {
	fl := cmd.Flags()
	if fl.Changed("title") {
		t.Title = tf.title
	}
	if fl.Changed("description") {
		t.Description = tf.description
	}
	if fl.Changed("priority") {
		t.Priority = tf.priority
	}
	if fl.Changed("due") {
		t.DueDate = tf.due
	}
	if fl.Changed("at") {
		t.NotifyAt = tf.notifyAt
	}
	if fl.Changed("tz") {
		t.Timezone = tf.timezone
	}
	if fl.Changed("target") {
		t.TargetID = tf.target
	}
}

func taskAddCmd(f *rootFlags) *cobra.Command {
	var tf taskFields
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Long: `Create an open task. If the task has a target, a "task created"
notice is sent to it; a failed notice does not undo the task.

Examples:
  remindd task add --title "Renew passport" --due 2026-11-30 --target 1
  remindd task add --title "Quarterly report" --due 2026-12-31 --at 09:00 --tz Europe/Berlin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				var t reminder.Task
				tf.applyTo(cmd, &t)
				created, notice, err := a.Tasks().Create(ctx, t)
				if err != nil {
					return err
				}
				v := viewTask(created)
				v.Notice = noticeText(notice)
				return printTasks(cmd, f, []taskView{v})
			})
		},
	}
	tf.bind(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd(f *rootFlags) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				list, err := a.Tasks().List(ctx, status)
				if err != nil {
					return err
				}
				views := make([]taskView, 0, len(list))
				for _, t := range list {
					views = append(views, viewTask(t))
				}
				return printTasks(cmd, f, views)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: open or done")
	return cmd
}

func taskUpdateCmd(f *rootFlags) *cobra.Command {
	var tf taskFields
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a task",
		Long: `Edit the given fields of a task. Reminders already sent for it are
forgotten, so the edited task is reminded afresh.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				t, err := a.Tasks().Get(ctx, id)
				if err != nil {
					return err
				}
				tf.applyTo(cmd, &t)
				updated, err := a.Tasks().Update(ctx, t)
				if err != nil {
					return err
				}
				return printTasks(cmd, f, []taskView{viewTask(updated)})
			})
		},
	}
	tf.bind(cmd)
	return cmd
}

func taskDoneCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task completed and stop its reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				t, notice, err := a.Tasks().Complete(ctx, id)
				if err != nil {
					return err
				}
				v := viewTask(t)
				v.Notice = noticeText(notice)
				return printTasks(cmd, f, []taskView{v})
			})
		},
	}
}

func taskReopenCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <id>",
		Short: "Reopen a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				t, err := a.Tasks().Reopen(ctx, id)
				if err != nil {
					return err
				}
				return printTasks(cmd, f, []taskView{viewTask(t)})
			})
		},
	}
}

func taskDeleteCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and its reminder history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				if err := a.Tasks().Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "task %d deleted\n", id)
				return nil
			})
		},
	}
}

func printTasks(cmd *cobra.Command, f *rootFlags, views []taskView) error {
	return render(cmd.OutOrStdout(), f.output, views, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tTITLE\tPRIORITY\tDUE\tAT\tTZ\tSTATUS\tTARGET\tNOTICE")
		for _, v := range views {
			target := "-"
			if v.TargetID != 0 {
				target = strconv.FormatInt(v.TargetID, 10)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				v.ID, v.Title, v.Priority, dash(v.DueDate), v.NotifyAt, v.Timezone, v.Status, target, dash(v.Notice))
		}
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
