package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veldtlabs/mentorkb/internal/config"
	"github.com/veldtlabs/mentorkb/internal/search"
)

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a knowledge base",
		Long:  "Embed the query text and rank the knowledge base's chunks by cosine similarity; with --keyword, blend in keyword matching",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().String("kb", "", "Knowledge base id")
	cmd.Flags().String("keyword", "", "Keyword for hybrid search")
	cmd.Flags().IntP("top-k", "k", search.DefaultTopK, "Number of results")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	_ = cmd.MarkFlagRequired("kb")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := args[0]
	kbID, _ := cmd.Flags().GetString("kb")
	keyword, _ := cmd.Flags().GetString("keyword")
	topK, _ := cmd.Flags().GetInt("top-k")
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	eng, err := buildEngine(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer eng.Close()

	queryVector, err := eng.provider.EmbedQuery(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	var results []search.Result
	if keyword != "" {
		results, err = eng.search.HybridSearch(ctx, queryVector, keyword, kbID, topK)
	} else {
		results, err = eng.search.SimilaritySearch(ctx, queryVector, kbID, topK)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%s] %s\n", i+1, r.ChunkID, r.Content)
	}

	return nil
}
