// remindd is the reminder scheduling daemon and its management CLI.
//
// Usage:
//
//	remindd serve
//	remindd task add --title "Renew passport" --due 2026-11-30 --target 1
//	remindd setting list
//	remindd target test 1
//	remindd preview -o json
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "time/tzdata"

	"remindd/internal/app"
)

var version = "dev"

type rootFlags struct {
	config string
	output string
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "remindd",
		Short: "Deadline reminders for todo tasks",
		Long: `remindd scans open tasks and sends each reminder occasion exactly once
to the task's target (WeCom robot, webhook or Telegram chat).

Run "remindd serve" for the daemon; the other commands manage tasks,
reminder settings and targets in the same database.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	def := os.Getenv("REMINDD_CONFIG")
	if def == "" {
		def = "./remindd.yaml"
	}
	root.PersistentFlags().StringVarP(&f.config, "config", "c", def, "Path to the config file (env REMINDD_CONFIG)")
	root.PersistentFlags().StringVarP(&f.output, "output", "o", "table", "Output format: table, json, yaml")

	root.AddCommand(serveCmd(f))
	root.AddCommand(previewCmd(f))
	root.AddCommand(tickCmd(f))
	root.AddCommand(sweepCmd(f))
	root.AddCommand(taskCmd(f))
	root.AddCommand(settingCmd(f))
	root.AddCommand(targetCmd(f))
	return root
}

// withApp builds the app for a one-shot command and closes it afterwards.
func withApp(cmd *cobra.Command, f *rootFlags, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.NewApp(ctx, f.config)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
