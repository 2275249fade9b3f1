package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"attendance-sync/internal/adapter"
	"attendance-sync/internal/reconcile"
	"attendance-sync/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage device polling",
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one polling cycle over all enabled pull devices",
	Long: `Polls every enabled pull-mode device once, normalizes and reconciles
the fetched logs, and records the outcome in the sync ledger. Intended to
be invoked from a scheduler (cron, systemd timer).`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		orchestrator := syncer.NewOrchestrator(
			provider,
			adapter.NewRegistry(),
			reconcile.NewEngine(provider, provider),
			syncer.NewClient(cfg.Sync.Timeout()),
			cfg.Sync.Retries,
			cfg.Sync.Backoff(),
		)

		results, err := orchestrator.RunCycle(ctx)
		if err != nil {
			slog.Error("Sync cycle failed", "error", err)
			os.Exit(1)
		}

		if len(results) == 0 {
			fmt.Println("No pull devices enabled")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tSTATUS\tRECORDS\tERROR")
		for _, result := range results {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				result.DeviceName, result.Status, result.Records, result.Error)
		}
		w.Flush()
	},
}

var syncLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent sync attempts",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		limit, _ := cmd.Flags().GetInt("limit")
		attempts, err := provider.ListSyncAttempts(ctx, limit)
		if err != nil {
			slog.Error("Failed to list sync attempts", "error", err)
			os.Exit(1)
		}

		if len(attempts) == 0 {
			fmt.Println("No sync attempts recorded")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tDEVICE\tKIND\tSTATUS\tRECORDS\tERROR")
		for _, attempt := range attempts {
			errText := ""
			if attempt.ErrorMessage != nil {
				errText = *attempt.ErrorMessage
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				attempt.StartedAt.Format("2006-01-02 15:04:05"),
				attempt.DeviceID,
				attempt.Kind,
				attempt.Status,
				attempt.RecordsSynced,
				errText,
			)
		}
		w.Flush()
	},
}

func init() {
	syncLogCmd.Flags().IntP("limit", "n", 20, "Number of attempts to show")

	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncLogCmd)
	rootCmd.AddCommand(syncCmd)
}
