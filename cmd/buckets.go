package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Origin-Inc/e-invoicing-backend/storage"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Create the object storage buckets for invoices, receipts, templates and exports",
	Example: `  # Create buckets with a per-environment prefix
  S3_BUCKET_PREFIX=staging- e-invoicing buckets`,
	RunE: runBuckets,
}

func init() {
	rootCmd.AddCommand(bucketsCmd)
}

func runBuckets(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	if !cfg.StorageEnabled() {
		return fmt.Errorf("object storage is not configured; set S3_ENDPOINT or S3_ACCESS_KEY_ID")
	}

	files, err := storage.NewS3Storage(cmd.Context(), cfg.Storage())
	if err != nil {
		return err
	}

	results, err := files.EnsureBuckets(cmd.Context())
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status := "ok"
		if !results[name] {
			status = "failed"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", name, status)
	}
	return err
}
