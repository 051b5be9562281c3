package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"remindd/internal/app"
)

func previewCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show how every open task is evaluated right now",
		Long: `Evaluate every open task at the current instant without sending
or recording anything: days until due, the matching rule, the occasion
key, whether it is notification time and whether it was already handled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				items, err := a.Scheduler().Preview(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), f.output, items, func(tw *tabwriter.Writer) {
					fmt.Fprintln(tw, "TASK\tTITLE\tDUE\tLOCAL NOW\tDAYS\tDECISION\tKEY\tTIME\tHANDLED\tSEND\tERROR")
					for _, it := range items {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
							it.TaskID, it.Title, dash(it.DueDate), dash(it.LocalNow), it.DaysUntil,
							dash(it.Decision), dash(it.Key), yesNo(it.IsTime), yesNo(it.Handled),
							yesNo(it.WouldSend), dash(it.Error))
					}
				})
			})
		},
	}
}

func tickCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler scan now and exit",
		Long: `Run a single scan, sending every due occasion not yet handled.
Useful from an external cron when the daemon is not running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				rep := a.Scheduler().Tick(ctx)
				if rep.Err != nil {
					return rep.Err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"tick %s minute=%s evaluated=%d sent=%d failed=%d skipped=%d errored=%d swept=%d took=%s\n",
					rep.ID, rep.Minute, rep.Evaluated, rep.Sent, rep.Failed, rep.Skipped, rep.Errored, rep.Swept, rep.Took)
				return nil
			})
		},
	}
}

func sweepCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete occasion records older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
				n, err := a.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d occasion records removed\n", n)
				return nil
			})
		},
	}
}
