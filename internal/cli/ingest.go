package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veldtlabs/mentorkb/internal/config"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a document into a knowledge base",
		Long:  "Read an extracted-text file, split it into chunks, embed them and persist them under a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().String("kb", "", "Knowledge base id")
	cmd.Flags().String("source", "", "Source location recorded on the document (defaults to the file path)")
	cmd.Flags().Int("chunk-size", 0, "Chunk size (defaults to configured value)")
	cmd.Flags().Int("overlap", 0, "Chunk overlap (defaults to configured value)")
	cmd.Flags().Bool("async", false, "Queue a background ingest job instead of ingesting inline")
	_ = cmd.MarkFlagRequired("kb")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]
	kbID, _ := cmd.Flags().GetString("kb")
	source, _ := cmd.Flags().GetString("source")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	overlap, _ := cmd.Flags().GetInt("overlap")
	async, _ := cmd.Flags().GetBool("async")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if chunkSize <= 0 {
		chunkSize = cfg.ChunkSize
	}
	if overlap <= 0 {
		overlap = cfg.ChunkOverlap
	}
	if source == "" {
		source = path
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	fileType := strings.TrimPrefix(filepath.Ext(path), ".")
	if fileType == "" {
		fileType = "txt"
	}

	eng, err := buildEngine(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer eng.Close()

	if async {
		doc, job, err := eng.service.IngestDocument(ctx, kbID, source, fileType, string(content), chunkSize, overlap)
		if err != nil {
			return fmt.Errorf("failed to queue ingestion: %w", err)
		}
		fmt.Printf("Document %s queued as job %s\n", doc.ID, job.ID)
		return nil
	}

	doc, err := eng.service.AddDocument(ctx, kbID, source, fileType, string(content))
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}

	count, err := eng.service.IngestChunks(ctx, kbID, doc.ID, string(content), chunkSize, overlap)
	if err != nil {
		return fmt.Errorf("failed to ingest chunks: %w", err)
	}
	fmt.Printf("Document %s ingested: %d chunks\n", doc.ID, count)

	return nil
}
