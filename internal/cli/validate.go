package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"price-anomaly-repair/internal/app"
)

var (
	validateFeed  string
	validateLimit int
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Scan a feed for anomalies without repairing",
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}

		opts := app.ValidateOptions{
			FeedPath: validateFeed,
			Limit:    validateLimit,
		}

		return getApp().Validate(cmd.Context(), opts)
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateFeed, "feed", "", "Feed file to scan (defaults to configured source)")
	validateCmd.Flags().IntVar(&validateLimit, "limit", 50, "Maximum anomalies to display (0 = all)")
}
