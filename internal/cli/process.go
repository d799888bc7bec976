package cli

import (
	"github.com/spf13/cobra"

	"price-anomaly-repair/internal/app"
)

var (
	processFeed   string
	processDryRun bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the full validate-and-repair pipeline once",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ProcessOptions{
			FeedPath: processFeed,
			DryRun:   processDryRun,
		}

		return getApp().Process(cmd.Context(), opts)
	},
}

func init() {
	processCmd.Flags().StringVar(&processFeed, "feed", "", "Feed file to process (defaults to configured source)")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "Run without writing to storage or dashboard files")
}
