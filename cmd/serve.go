package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/protocol"
	"github.com/kozaktomas/facevote/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the facevote API server.
Voters can be registered, verified and vote over HTTP. With --camera the
server drives the attached camera itself; otherwise clients submit the
face descriptors they computed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "Additional CORS origin, repeatable")
	serveCmd.Flags().Bool("camera", false, "Capture from the server camera instead of accepting client descriptors")
	serveCmd.Flags().Bool("preload", false, "Load the face detector model at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	cfg.Web.AllowedOrigins = append(cfg.Web.AllowedOrigins, mustGetStringSlice(cmd, "allowed-origin")...)

	_, closeStore, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var source protocol.LiveSource
	if mustGetBool(cmd, "camera") {
		cam, closeCamera, err := openCamera(cfg, logger, mustGetBool(cmd, "preload"))
		if err != nil {
			return err
		}
		defer closeCamera()
		source = cam
	}

	server := web.NewServer(cfg, source, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting facevote on http://%s\n", cfg.Web.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
