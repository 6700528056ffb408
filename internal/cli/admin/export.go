package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pbparthas/enki/internal/config"
	"github.com/pbparthas/enki/internal/repository"
	"github.com/pbparthas/enki/internal/service"
	"github.com/pbparthas/enki/internal/storage"
	"github.com/spf13/cobra"
)

func ExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a knowledge snapshot to S3",
		Long:  "Serialize every knowledge item to a JSON snapshot and upload it to the configured S3 bucket",
		RunE:  runExport,
	}

	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasS3() {
		return fmt.Errorf("snapshot storage is not configured: S3_ENDPOINT required")
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}

	itemRepo := repository.NewItemRepository(pool)
	exportSvc := service.NewExportService(itemRepo, s3Client)

	out, err := exportSvc.Export(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"key":          out.Key,
			"item_count":   out.ItemCount,
			"download_url": out.DownloadURL,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Snapshot uploaded: %s (%d items)\n", out.Key, out.ItemCount)
		fmt.Printf("Download URL: %s\n", out.DownloadURL)
	}

	return nil
}
