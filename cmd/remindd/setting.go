package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"remindd/internal/app"
)

type settingView struct {
	ID         int64  `json:"id" yaml:"id"`
	DaysBefore int    `json:"days_before" yaml:"days_before"`
	Active     bool   `json:"active" yaml:"active"`
	CreatedAt  string `json:"created_at" yaml:"created_at"`
}

func settingCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setting",
		Short: `Manage "remind N days before due" rules`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <days-before>",
			Short: "Add an active rule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				days, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid days %q", args[0])
				}
				return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
					id, err := a.Tasks().AddSetting(ctx, days)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "setting %d added (%d days before)\n", id, days)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List rules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
					list, err := a.Tasks().Settings(ctx)
					if err != nil {
						return err
					}
					views := make([]settingView, 0, len(list))
					for _, s := range list {
						views = append(views, settingView{
							ID: s.ID, DaysBefore: s.DaysBefore, Active: s.Active,
							CreatedAt: s.CreatedAt.Format("2006-01-02 15:04"),
						})
					}
					return render(cmd.OutOrStdout(), f.output, views, func(tw *tabwriter.Writer) {
						fmt.Fprintln(tw, "ID\tDAYS BEFORE\tACTIVE\tCREATED")
						for _, v := range views {
							fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", v.ID, v.DaysBefore, yesNo(v.Active), v.CreatedAt)
						}
					})
				})
			},
		},
		idCommand(f, "remove <id>", "Delete a rule", func(ctx context.Context, a *app.App, id int64) (string, error) {
			return fmt.Sprintf("setting %d removed", id), a.Tasks().RemoveSetting(ctx, id)
		}),
		idCommand(f, "enable <id>", "Activate a rule", func(ctx context.Context, a *app.App, id int64) (string, error) {
			return fmt.Sprintf("setting %d enabled", id), a.Tasks().SetSettingActive(ctx, id, true)
		}),
		idCommand(f, "disable <id>", "Deactivate a rule", func(ctx context.Context, a *app.App, id int64) (string, error) {
			return fmt.Sprintf("setting %d disabled", id), a.Tasks().SetSettingActive(ctx, id, false)
		}),
	)
	return cmd
}

// idCommand builds a subcommand taking a single id and printing msg on success.
func idCommand(f *rootFlags, use, short string, fn func(ctx context.Context, a *app.App, id int64) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				msg, err := fn(ctx, a, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}
