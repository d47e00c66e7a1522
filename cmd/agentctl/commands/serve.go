package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentcore/turnengine/internal/logging"
	"github.com/agentcore/turnengine/internal/server"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Turn Engine as a headless HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8765, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname shown in the logged server URL (the server listens on all interfaces)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	logging.Info().Str("version", Version).Msg("starting agentctl server")
	logging.Info().Str("directory", workDir).Msg("working directory")

	w, err := wire(workDir, server.NewEventCallbacks())
	if err != nil {
		return err
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort

	srv := server.New(serverConfig, w.store, w.eng, w.arbiter, w.agents, w.prompter)

	go func() {
		logging.Info().
			Str("url", fmt.Sprintf("http://%s:%d", serveHostname, servePort)).
			Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
	return nil
}
