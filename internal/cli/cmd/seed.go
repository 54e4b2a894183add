package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"github.com/twinlog/internal/service"
)

var (
	seedUserID uint
	seedEvents int
	seedDays   int
	seedValue  int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate synthetic browsing history for a user",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().UintVar(&seedUserID, "user", 0, "user id to seed")
	seedCmd.Flags().IntVar(&seedEvents, "events", 200, "number of visits to generate")
	seedCmd.Flags().IntVar(&seedDays, "days", 14, "number of days the visits span")
	seedCmd.Flags().Int64Var(&seedValue, "seed", time.Now().UnixNano(), "random seed")
	_ = seedCmd.MarkFlagRequired("user")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	application, _, err := loadRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close(cmd.Context())

	events := service.GenerateSyntheticHistory(rand.New(rand.NewSource(seedValue)), seedEvents, time.Now(), seedDays)
	result, err := application.Store.SyncEvents(cmd.Context(), seedUserID, events)
	if err != nil {
		return fmt.Errorf("seed history: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "generated %d visits: %d inserted, %d updated\n", result.Received, result.Inserted, result.Updated)
	return nil
}
