/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/welisten/apiserver/config"
	"github.com/welisten/apiserver/internal/db"
	"github.com/welisten/apiserver/internal/duplicates"
	"github.com/welisten/apiserver/internal/logger"
	"github.com/welisten/apiserver/internal/registry"
	"github.com/welisten/apiserver/internal/services"
	"github.com/welisten/apiserver/internal/storage"
	"github.com/welisten/apiserver/internal/store"
)

var exportQuery services.ListQuery

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Snapshot the feedback listing into object storage",
	Long: `Writes every visible feedback matching the filters as a single JSON
document under exports/ in the configured bucket. Usage:

	welisten export --category Bug --sort most_upvotes
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.LoadConfig()
		log := logger.New(cfg.Env)

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}

		feedbackRepo := store.NewFeedbackRepository(dbConn)
		feedbackService := services.NewFeedbackService(
			feedbackRepo,
			registry.Default(),
			duplicates.NewFinder(feedbackRepo),
			duplicates.NopClassifier{},
			services.WithLogger(log),
			services.WithListLimits(cfg.Listing.DefaultLimit, cfg.Listing.MaxLimit),
		)

		result, err := services.NewExportService(feedbackService, objects).Export(ctx, exportQuery)
		if err != nil {
			return err
		}

		log.Info().
			Str("bucket", objects.Bucket()).
			Str("key", result.Key).
			Int("count", result.Count).
			Msg("feedback exported")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportQuery.Search, "search", "", "only export feedback whose title or detail contains this text")
	exportCmd.Flags().StringVar(&exportQuery.Category, "category", "", "only export this category")
	exportCmd.Flags().StringVar(&exportQuery.Sort, "sort", "", "sort order: newest, most_upvotes, least_upvotes, most_comments or least_comments")
}
