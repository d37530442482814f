package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studiowebux/loadtest/internal/logging"
	"github.com/studiowebux/loadtest/internal/mock"
	"go.uber.org/zap"
)

// MockOptions configures the local demo target
type MockOptions struct {
	ConfigFile string
	Host       string
	Port       int
	Delay      int // milliseconds
	Jitter     int // milliseconds
	ErrorRate  float64
	LogLevel   string
	Stderr     io.Writer
}

// RunMock serves the demo target until ctx is cancelled or the process is
// interrupted
func RunMock(ctx context.Context, opts MockOptions) error {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	logger, err := logging.New(opts.LogLevel, logging.FormatConsole, stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := mock.DefaultConfig()
	if opts.ConfigFile != "" {
		if cfg, err = mock.LoadConfig(opts.ConfigFile); err != nil {
			return err
		}
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.Delay > 0 {
		cfg.Delay = opts.Delay
	}
	if opts.Jitter > 0 {
		cfg.Jitter = opts.Jitter
	}
	if opts.ErrorRate > 0 {
		cfg.ErrorRate = opts.ErrorRate
	}

	server, err := mock.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Mock target running at %s (Ctrl+C to stop)\n", server.GetAddress())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop mock server: %w", err)
	}

	for route, n := range server.Hits() {
		logger.Debug("route hits", zap.String("route", route), zap.Int("count", n))
	}
	return nil
}
