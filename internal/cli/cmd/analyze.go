package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/twinlog/internal/service"
)

var (
	analyzeUserID  uint
	analyzeRefresh bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print a user's analysis report as JSON",
	Long: `Compute (or load from cache) the analysis report for one user and print it
as JSON. Use --refresh to ignore the cached report.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().UintVar(&analyzeUserID, "user", 0, "user id to analyze")
	analyzeCmd.Flags().BoolVar(&analyzeRefresh, "refresh", false, "ignore the cached report")
	_ = analyzeCmd.MarkFlagRequired("user")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	application, _, err := loadRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close(cmd.Context())

	result, err := application.Analysis.GetAnalysis(cmd.Context(), analyzeUserID, analyzeRefresh)
	if errors.Is(err, service.ErrNoHistoryData) {
		return fmt.Errorf("user %d has no browsing history", analyzeUserID)
	}
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
