package embedkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/embedkit/pkg/config"
	"github.com/soundprediction/embedkit/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an OpenAI-compatible embeddings API",
	Long: `Start an HTTP server that exposes the embedding client.

The server provides endpoints for:
- POST /v1/embeddings (OpenAI-compatible request and response)
- Health, readiness and liveness checks`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
	serveMode string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Server host")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serveMode, "mode", "release", "Server mode (debug, release, test)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	overrideServerFlags(cmd, cfg)

	rt, err := newRuntime(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.logger.Warn("Failed to close embedding client", "error", err)
		}
	}()

	srv := server.New(cfg, rt.client, rt.logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		rt.logger.Info("Received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		rt.logger.Info("Server stopped gracefully")
		return nil
	}
}

func overrideServerFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serveMode
	}
}
