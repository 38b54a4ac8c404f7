package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hutchstack/bunny-go/cli/internal/watch"
	"github.com/hutchstack/bunny-go/config"
	"github.com/hutchstack/bunny-go/upstream"
)

// NewDaemonCommand creates the daemon command: the long-running worker loop.
func NewDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Poll the task API and answer queries until interrupted",
		RunE:  runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.exec.Ping(ctx); err != nil {
		return err
	}
	if advisory, ok, err := app.exec.VersionAdvisory(ctx); err != nil {
		app.log.Warn("version check failed", zap.Error(err))
	} else if !ok {
		app.log.Warn("database server version below advised minimum", zap.String("version", advisory))
	}

	client, err := app.client()
	if err != nil {
		return err
	}

	// Edits to .env retune obfuscation without a restart.
	watcher, err := watch.NewWatcher(".env", func() error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		app.solver.SetObfuscation(pipelineFrom(cfg))
		return nil
	}, app.log)
	if err != nil {
		app.log.Warn("config watch unavailable", zap.Error(err))
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	svc := upstream.NewPollingService(client, app.solver.Solve, app.cfg.Polling.Interval, app.retryPolicy(), app.log)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	app.log.Info("worker stopped")
	return nil
}
