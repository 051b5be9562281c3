package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"remindd/internal/app"
	"remindd/internal/dispatch"
	"remindd/internal/reminder"
)

type targetView struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Kind        string `json:"kind" yaml:"kind"`
	Address     string `json:"address" yaml:"address"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Active      bool   `json:"active" yaml:"active"`
}

func targetCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage delivery targets (WeCom robots, webhooks, Telegram chats)",
	}

	var t reminder.Target
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a target",
		Long: `Register a delivery target.

Examples:
  remindd target add --name team --kind wecom --address "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=..."
  remindd target add --name me --kind telegram --address 123456789`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				id, err := a.Tasks().AddTarget(ctx, t)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "target %d added\n", id)
				return nil
			})
		},
	}
	add.Flags().StringVar(&t.Name, "name", "", "Display name")
	add.Flags().StringVar(&t.Kind, "kind", reminder.TargetWeCom, "wecom, webhook or telegram")
	add.Flags().StringVar(&t.Address, "address", "", "Webhook URL or Telegram chat id")
	add.Flags().StringVar(&t.Description, "description", "", "Free-form note")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("address")

	list := &cobra.Command{
		Use:   "list",
		Short: "List targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				targets, err := a.Tasks().Targets(ctx)
				if err != nil {
					return err
				}
				views := make([]targetView, 0, len(targets))
				for _, t := range targets {
					addr := t.Address
					if t.Kind != reminder.TargetTelegram {
						addr = dispatch.RedactURL(addr)
					}
					views = append(views, targetView{
						ID: t.ID, Name: t.Name, Kind: t.Kind, Address: addr,
						Description: t.Description, Active: t.Active,
					})
				}
				return render(cmd.OutOrStdout(), f.output, views, func(tw *tabwriter.Writer) {
					fmt.Fprintln(tw, "ID\tNAME\tKIND\tADDRESS\tACTIVE")
					for _, v := range views {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Kind, v.Address, yesNo(v.Active))
					}
				})
			})
		},
	}

	cmd.AddCommand(add, list,
		idCommand(f, "remove <id>", "Delete a target", func(ctx context.Context, a *app.App, id int64) (string, error) {
			return fmt.Sprintf("target %d removed", id), a.Tasks().RemoveTarget(ctx, id)
		}),
		idCommand(f, "enable <id>", "Activate a target", func(ctx context.Context, a *app.App, id int64) (string, error) {
			return fmt.Sprintf("target %d enabled", id), a.Tasks().SetTargetActive(ctx, id, true)
		}),
		idCommand(f, "disable <id>", "Deactivate a target", func(ctx context.Context, a *app.App, id int64) (string, error) {
			return fmt.Sprintf("target %d disabled", id), a.Tasks().SetTargetActive(ctx, id, false)
		}),
		idCommand(f, "test <id>", "Send a test message", func(ctx context.Context, a *app.App, id int64) (string, error) {
			res, err := a.Tasks().SendTest(ctx, id)
			if err != nil {
				return "", err
			}
			if !res.OK() {
				return "", fmt.Errorf("test message to target %d: %s", id, res)
			}
			return fmt.Sprintf("test message delivered to target %d", id), nil
		}),
	)
	return cmd
}
