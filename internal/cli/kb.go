package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veldtlabs/mentorkb/internal/config"
	"github.com/veldtlabs/mentorkb/internal/domain"
)

// KBCmd returns the kb command group
func KBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage knowledge bases",
		Long:  "Create and inspect knowledge bases",
	}

	cmd.AddCommand(KBCreateCmd())
	cmd.AddCommand(KBGetCmd())

	return cmd
}

// KBCreateCmd returns the kb create command
func KBCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new knowledge base",
		Long:  "Create a new knowledge base; its vector dimension is fixed from the configured embedding model",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBCreate,
	}

	cmd.Flags().String("owner", "", "Owner id of the knowledge base")
	cmd.Flags().String("domain", string(domain.KnowledgeDomainIT), "Knowledge domain (it, language or cert)")
	cmd.Flags().String("subdomain", "", "Optional sub-domain")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runKBCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]
	owner, _ := cmd.Flags().GetString("owner")
	kd, _ := cmd.Flags().GetString("domain")
	subDomain, _ := cmd.Flags().GetString("subdomain")
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	eng, err := buildEngine(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer eng.Close()

	kb, err := eng.service.CreateKnowledgeBase(ctx, owner, name, domain.KnowledgeDomain(kd), subDomain)
	if err != nil {
		return fmt.Errorf("failed to create knowledge base: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(kb, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Knowledge base created: %s (%s, dimension %d)\n", kb.Name, kb.ID, kb.Dimension)
	}

	return nil
}

// KBGetCmd returns the kb get command
func KBGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBGet,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runKBGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
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

	kb, err := eng.service.GetKnowledgeBase(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get knowledge base: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(kb, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("%s  %s  domain=%s", kb.ID, kb.Name, kb.Domain)
		if kb.SubDomain != "" {
			fmt.Printf("/%s", kb.SubDomain)
		}
		fmt.Printf("  dimension=%d  owner=%s  created=%s\n", kb.Dimension, kb.OwnerID, kb.CreatedAt.Format("2006-01-02"))
	}

	return nil
}
