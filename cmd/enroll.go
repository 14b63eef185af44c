package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/capture"
	"github.com/kozaktomas/facevote/internal/database"
	"github.com/kozaktomas/facevote/internal/protocol"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Register a voter from the camera",
	Long: `Captures a series of face samples from the camera within the capture
budget and registers the voter with them. Press Ctrl+C to abort the capture.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Voter's full name (required)")
	enrollCmd.Flags().String("id", "", "Voter's external ID, e.g. national ID number (required)")
	enrollCmd.Flags().Int("samples", 0, "Number of face samples to capture (default from config)")
	enrollCmd.Flags().Bool("preload", true, "Load the face detector model before opening the camera")
	_ = enrollCmd.MarkFlagRequired("name")
	_ = enrollCmd.MarkFlagRequired("id")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	name := mustGetString(cmd, "name")
	externalID := mustGetString(cmd, "id")
	if n := mustGetInt(cmd, "samples"); n > 0 {
		cfg.Biometric.TargetCount = n
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if existing, err := store.GetVoterByExternalID(ctx, database.NormalizeExternalID(externalID)); err != nil {
		return fmt.Errorf("checking voter: %w", err)
	} else if existing != nil {
		return biometric.ErrDuplicateExternalID
	}

	source, closeCamera, err := openCamera(cfg, logger, mustGetBool(cmd, "preload"))
	if err != nil {
		return err
	}
	defer closeCamera()

	controller := capture.NewController(capture.Options{
		TargetCount:  cfg.Biometric.TargetCount,
		Budget:       cfg.Biometric.CaptureBudget,
		SuccessPause: cfg.Biometric.SuccessPause,
		FailurePause: cfg.Biometric.FailurePause,
	}, logger)
	registrar := protocol.NewRegistrar(store, cfg.Biometric.AllowEmptyEnrollment, logger)
	enroller := protocol.NewEnroller(registrar, source, controller)

	target := controller.Options().TargetCount
	bar := progressbar.NewOptions(target,
		progressbar.OptionSetDescription("Capturing face"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("samples"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	fmt.Printf("Look at the camera. Capturing %d samples for %s...\n", target, name)
	set, err := enroller.Capture(ctx, func(count, timeLeft int) {
		bar.Describe(fmt.Sprintf("Capturing face (%ds left)", timeLeft))
		_ = bar.Set(count)
	})
	_ = bar.Finish()
	fmt.Println()

	if err != nil {
		if !cfg.Biometric.AllowEmptyEnrollment || biometric.KindOf(err) == biometric.KindCancelled {
			return fmt.Errorf("face capture failed: %w", err)
		}
		fmt.Printf("Warning: %s, registering without face data\n", biometric.MessageOf(err))
	} else {
		fmt.Printf("Captured %d face samples\n", len(set))
	}

	voter, err := enroller.Submit(ctx, name, externalID)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Printf("Registered %s (ID %s) with %d face samples\n", voter.Name, voter.ExternalID, len(voter.Descriptors))
	return nil
}
