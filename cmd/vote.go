package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/database"
	"github.com/kozaktomas/facevote/internal/protocol"
	"github.com/kozaktomas/facevote/internal/verify"
)

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Verify a voter at the camera and cast their ballot",
	Long: `Confirms the claimed voter's identity against their enrolled face samples
and records the ballot for the chosen candidate. The voter gets a limited
number of attempts within the session timeout.`,
	RunE: runVote,
}

func init() {
	rootCmd.AddCommand(voteCmd)

	voteCmd.Flags().String("id", "", "Voter's external ID (required)")
	voteCmd.Flags().Int64("candidate", 0, "Candidate ID to vote for (required)")
	voteCmd.Flags().Float64("threshold", 0, "Override the match distance threshold")
	_ = voteCmd.MarkFlagRequired("id")
	_ = voteCmd.MarkFlagRequired("candidate")
}

func runVote(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if th := mustGetFloat64(cmd, "threshold"); th > 0 {
		cfg.Biometric.Threshold = th
	}
	candidateID := mustGetInt64(cmd, "candidate")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	candidate, err := store.GetCandidate(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("looking up candidate: %w", err)
	}
	if candidate == nil {
		return biometric.ErrCandidateNotFound
	}

	source, closeCamera, err := openCamera(cfg, logger, true)
	if err != nil {
		return err
	}
	defer closeCamera()

	engine := verify.NewEngine(cfg.Biometric.Threshold, cfg.Biometric.MinMatches)
	p := protocol.New(store, engine, protocol.Policy{
		MaxAttempts:    cfg.Biometric.MaxAttempts,
		SessionTimeout: cfg.Biometric.SessionTimeout,
	}, logger)

	session, err := p.BeginVerification(ctx, mustGetString(cmd, "id"), source)
	if err != nil {
		return fmt.Errorf("starting verification: %w", err)
	}
	defer session.Cancel()

	voter := session.Voter()
	fmt.Printf("Verifying %s. Look at the camera.\n", voter.Name)

	vote, err := verifyAndVote(ctx, session, candidate.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Vote for %s recorded at %s\n", candidate.Name, vote.CastAt.Format("15:04:05"))
	return nil
}

// verifyAndVote runs attempts until the session confirms the voter or ends,
// then casts the ballot.
func verifyAndVote(ctx context.Context, session *protocol.Session, candidateID int64) (*database.Vote, error) {
	for session.State() != protocol.StateConfirmed {
		res, err := session.Attempt(ctx)
		if err != nil {
			if res.Decision == protocol.DecisionRejected {
				fmt.Printf("%s (confidence %.1f%%)\n", biometric.MessageOf(err), res.Outcome.Confidence)
				continue
			}
			return nil, fmt.Errorf("verification failed: %w", err)
		}
		fmt.Printf("Identity confirmed (%d of %d samples matched, confidence %.1f%%)\n",
			res.Outcome.Matches, res.Outcome.Compared, res.Outcome.Confidence)
	}

	vote, err := session.CastVote(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("casting vote: %w", err)
	}
	return vote, nil
}
