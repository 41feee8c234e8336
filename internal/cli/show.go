package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rate-index-oracle/internal/app"
)

var (
	showLimit      int
	showRejections bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent snapshots or rejections",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:      showLimit,
			Rejections: showRejections,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showRejections, "rejections", false, "Show the rejection audit trail instead of snapshots")
}
