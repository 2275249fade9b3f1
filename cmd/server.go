package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	app "attendance-sync/internal"
	"attendance-sync/internal/adapter"
	"attendance-sync/internal/gate"
	"attendance-sync/internal/nonce"
	"attendance-sync/internal/reconcile"
	"attendance-sync/internal/routes"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the attendance ingestion server",
	Run: func(cmd *cobra.Command, args []string) {
		ServerMain()
	},
}

func ServerMain() {
	if provider == nil {
		slog.Error("Storage provider is nil")
		os.Exit(1)
	}

	nonceStore := nonce.NewSQLStore(provider)

	deps := routes.WebhookDeps{
		Gate:     gate.New(provider, provider, nonceStore, cfg.FreshnessWindow()),
		Registry: adapter.NewRegistry(),
		Engine:   reconcile.NewEngine(provider, provider),
		Ledger:   provider,
	}

	server := app.HTTPServer(deps)

	slog.Info("Starting attendance ingestion server", "addr", cfg.ListenAddr)
	if err := server.Run(cfg.ListenAddr); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
