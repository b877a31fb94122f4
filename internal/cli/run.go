package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/flowsync/internal/reconcile"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Interval time.Duration

	// observer, when set, sees every pass (for testing).
	observer reconcile.PassObserver
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sync scheduler",
		Long: `Start the flowsync scheduler.

Runs a sync pass at startup and then every sync.interval until stopped.
SIGUSR1 requests an extra pass; requests made while a pass is running are
folded into one. SIGINT and SIGTERM stop the scheduler after the current
pass.

Example:
  flowsync run --db ./flowsync.db
  flowsync run --interval 30m --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides db_path)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "time between passes (overrides sync.interval)")

	return cmd
}

func runScheduler(opts *RunOptions, cmd *cobra.Command) error {
	overrides := map[string]any{}
	if opts.Database != "" {
		overrides["db_path"] = opts.Database
	}
	if opts.Interval != 0 {
		overrides["sync.interval"] = opts.Interval
	}

	cfg, logger, err := opts.loadConfig(cmd, overrides)
	if err != nil {
		return err
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	ws, err := openWorkspace(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer ws.Close()
	logger.Info("database ready", "path", cfg.DBPath, "workflows", ws.lib.Len())

	rec, err := ws.reconciler()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up sync", err)
	}

	schedOpts := []reconcile.SchedulerOption{
		reconcile.WithInterval(cfg.Sync.Interval),
		reconcile.WithSchedulerLogger(logger),
	}
	if opts.observer != nil {
		schedOpts = append(schedOpts, reconcile.WithObserver(opts.observer))
	}
	sched := reconcile.NewScheduler(rec, schedOpts...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go handleSignals(ctx, sigChan, sched, cancel, logger)

	fmt.Fprintf(cmd.OutOrStdout(), "Syncing every %s. Press Ctrl-C to stop.\n", cfg.Sync.Interval)

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "scheduler error", err)
	}

	logger.Info("scheduler stopped gracefully")
	return nil
}

// passTrigger requests an on-demand pass. Implemented by
// *reconcile.Scheduler.
type passTrigger interface {
	Trigger(reason string) bool
}

// handleSignals turns SIGUSR1 into an on-demand pass and any other signal
// into shutdown. It returns after shutdown or when ctx is done.
func handleSignals(ctx context.Context, sigs <-chan os.Signal, sched passTrigger, cancel context.CancelFunc, logger *slog.Logger) {
	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGUSR1 {
				if !sched.Trigger(reconcile.ReasonSignal) {
					logger.Debug("pass already pending", "signal", sig)
				}
				continue
			}
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
