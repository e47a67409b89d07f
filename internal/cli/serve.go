package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veldtlabs/mentorkb/internal/config"
	"github.com/veldtlabs/mentorkb/internal/jobs"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background ingest worker",
		Long:  "Run the ingest worker that processes queued document ingestion jobs until interrupted",
		RunE:  runServe,
	}

	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	eng, err := buildEngine(ctx, cfg, !noMigrate)
	if err != nil {
		return err
	}
	defer eng.Close()
	log.Printf("store backend: %s", cfg.StoreBackend)

	worker := jobs.NewWorker(jobs.NewIngestWorker(eng.store, eng.service), cfg.WorkerPollInterval)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go worker.Start(workerCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("received %v, shutting down", sig)

	worker.Stop()
	return nil
}
