package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the vote tally",
	Args:  cobra.NoArgs,
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, closeStore, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	voters, err := store.CountVoters(cmd.Context())
	if err != nil {
		return fmt.Errorf("counting voters: %w", err)
	}
	results, err := store.Results(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading results: %w", err)
	}

	total := 0
	for _, r := range results {
		total += r.Votes
	}

	fmt.Printf("Registered voters: %d\n", voters)
	fmt.Printf("Votes cast:        %d\n\n", total)
	for _, r := range results {
		share := 0.0
		if total > 0 {
			share = float64(r.Votes) / float64(total) * 100
		}
		fmt.Printf("%-30s %6d  %5.1f%%\n", r.Candidate.Name, r.Votes, share)
	}
	return nil
}
