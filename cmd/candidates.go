package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facevote/internal/database"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Manage ballot candidates",
}

var candidatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates",
	Args:  cobra.NoArgs,
	RunE:  runCandidatesList,
}

var candidatesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a candidate",
	Args:  cobra.NoArgs,
	RunE:  runCandidatesAdd,
}

var candidatesDeleteCmd = &cobra.Command{
	Use:   "delete [candidate-id]",
	Short: "Delete a candidate without votes",
	Args:  cobra.ExactArgs(1),
	RunE:  runCandidatesDelete,
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.AddCommand(candidatesListCmd, candidatesAddCmd, candidatesDeleteCmd)

	candidatesAddCmd.Flags().String("name", "", "Candidate name (required)")
	candidatesAddCmd.Flags().String("party", "", "Party or affiliation")
	candidatesAddCmd.Flags().String("position", "", "Office the candidate runs for")
	_ = candidatesAddCmd.MarkFlagRequired("name")
}

func runCandidatesList(cmd *cobra.Command, args []string) error {
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

	candidates, err := store.ListCandidates(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing candidates: %w", err)
	}
	if len(candidates) == 0 {
		fmt.Println("No candidates")
		return nil
	}

	fmt.Printf("%-6s %-30s %-20s %s\n", "ID", "NAME", "PARTY", "POSITION")
	for _, c := range candidates {
		fmt.Printf("%-6d %-30s %-20s %s\n", c.ID, c.Name, c.Party, c.Position)
	}
	return nil
}

func runCandidatesAdd(cmd *cobra.Command, args []string) error {
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

	candidate := &database.Candidate{
		Name:     database.CleanName(mustGetString(cmd, "name")),
		Party:    database.CleanName(mustGetString(cmd, "party")),
		Position: database.CleanName(mustGetString(cmd, "position")),
	}
	if candidate.Name == "" {
		return fmt.Errorf("candidate name is required")
	}
	if err := store.CreateCandidate(cmd.Context(), candidate); err != nil {
		return fmt.Errorf("adding candidate: %w", err)
	}

	fmt.Printf("Added candidate %d: %s\n", candidate.ID, candidate.Name)
	return nil
}

func runCandidatesDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid candidate ID %q", args[0])
	}

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

	if err := store.DeleteCandidate(cmd.Context(), id); err != nil {
		return fmt.Errorf("deleting candidate: %w", err)
	}

	fmt.Printf("Deleted candidate %d\n", id)
	return nil
}
