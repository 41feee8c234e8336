package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rate-index-oracle/internal/app"
)

var (
	simBaseRate  string
	simBaseIndex string
	simBaseTime  string
	simRate      string
	simIndex     string
	simTime      string
	simCap       string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a synthetic proposal against a fresh validated oracle",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseTime, err := time.Parse(time.RFC3339, simBaseTime)
		if err != nil {
			return fmt.Errorf("invalid --base-time value: %w", err)
		}
		candTime, err := time.Parse(time.RFC3339, simTime)
		if err != nil {
			return fmt.Errorf("invalid --time value: %w", err)
		}

		opts := app.SimulateOptions{
			BaseRate:  simBaseRate,
			BaseIndex: simBaseIndex,
			BaseTime:  baseTime,
			Rate:      simRate,
			Index:     simIndex,
			Time:      candTime,
			Cap:       simCap,
		}

		return getApp().SimulateProposal(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simBaseRate, "base-rate", "1", "Base per-second rate (unit scale, e.g. 1.000000001547125957863212448)")
	simulateCmd.Flags().StringVar(&simBaseIndex, "base-index", "1", "Base accumulated index (unit scale)")
	simulateCmd.Flags().StringVar(&simBaseTime, "base-time", "", "Base observation time (RFC3339)")
	simulateCmd.Flags().StringVar(&simRate, "rate", "1", "Candidate per-second rate (unit scale)")
	simulateCmd.Flags().StringVar(&simIndex, "index", "1", "Candidate accumulated index (unit scale)")
	simulateCmd.Flags().StringVar(&simTime, "time", "", "Candidate observation time (RFC3339)")
	simulateCmd.Flags().StringVar(&simCap, "cap", "", "Rate cap override (unit scale; empty keeps config)")

	_ = simulateCmd.MarkFlagRequired("base-time")
	_ = simulateCmd.MarkFlagRequired("time")
}
