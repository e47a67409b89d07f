package cli

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/veldtlabs/mentorkb/internal/config"
	"github.com/veldtlabs/mentorkb/internal/telemetry"
)

// RootCmd builds the mentorkb command tree.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mentorkb",
		Short: "Knowledge-base retrieval engine",
		Long:  "mentorkb ingests documents into per-tenant knowledge bases and answers similarity and hybrid searches over them",
	}

	AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(KBCmd())
	rootCmd.AddCommand(IngestCmd())
	rootCmd.AddCommand(SearchCmd())

	return rootCmd
}

// initTelemetry starts Sentry when a DSN is configured and returns the
// flush function.
func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	// Sample everything in development, 10% elsewhere
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}
