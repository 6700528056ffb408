package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pbparthas/enki/internal/config"
	"github.com/pbparthas/enki/internal/repository"
	"github.com/pbparthas/enki/internal/service"
	"github.com/spf13/cobra"
)

func DecayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Run a decay pass over all knowledge items",
		Long:  "Recalculate retention weights from last-access age and report bucket counts",
		RunE:  runDecay,
	}

	cmd.Flags().Bool("process-deletions", false, "Also hard-delete items flagged for deletion")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runDecay(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	processDeletions, _ := cmd.Flags().GetBool("process-deletions")
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	itemRepo := repository.NewItemRepository(pool)
	engine := service.NewRetentionEngine(itemRepo, service.Thresholds{
		D90:  cfg.DecayD90,
		D180: cfg.DecayD180,
		D365: cfg.DecayD365,
	})

	report, err := engine.RunDecay(ctx)
	if err != nil {
		return fmt.Errorf("decay pass failed: %w", err)
	}

	var deleted map[string]int
	if processDeletions {
		byCategory, err := engine.ProcessFlaggedDeletions(ctx)
		if err != nil {
			return fmt.Errorf("failed to process flagged deletions: %w", err)
		}
		deleted = make(map[string]int, len(byCategory))
		for category, n := range byCategory {
			deleted[string(category)] = n
		}
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"scanned":    report.Scanned,
			"updated":    report.Updated,
			"unchanged":  report.Unchanged,
			"pinned":     report.Pinned,
			"unparsable": report.Unparsable,
			"buckets":    report.Buckets,
		}
		if deleted != nil {
			data["deleted"] = deleted
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("Decay pass complete: %d scanned, %d updated, %d unchanged (%d pinned, %d unparsable)\n",
		report.Scanned, report.Updated, report.Unchanged, report.Pinned, report.Unparsable)
	for bucket, n := range report.Buckets {
		fmt.Printf("  %s: %d\n", bucket, n)
	}
	if deleted != nil {
		total := 0
		for category, n := range deleted {
			fmt.Printf("  deleted %s: %d\n", category, n)
			total += n
		}
		fmt.Printf("Deleted %d flagged items\n", total)
	}

	return nil
}
