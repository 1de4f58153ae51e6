package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	dsulog "github.com/Alia5/dsu-go/internal/log"
	"github.com/Alia5/dsu-go/server"
)

// Server is the "server" subcommand: it binds the DSU UDP socket and drives
// the event loop until interrupted.
type Server struct {
	Port int `help:"UDP port to listen on." default:"26760" env:"DSUD_PORT"`
}

// Run is called by kong when the server command is executed.
func (s *Server) Run(logger *slog.Logger, rawLogger dsulog.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartServer(ctx, logger, rawLogger)
}

// StartServer builds and drives a *server.Server until ctx is cancelled.
func (s *Server) StartServer(ctx context.Context, logger *slog.Logger, rawLogger dsulog.RawLogger) error {
	srv, err := server.New(s.Port, logger, rawLogger)
	if err != nil {
		return fmt.Errorf("failed to start DSU server: %w", err)
	}

	logger.Info("DSU server listening", "addr", srv.LocalAddr())
	return srv.Run(ctx)
}
