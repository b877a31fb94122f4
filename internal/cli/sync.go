package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flowsync/internal/reconcile"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Database        string
	CheckUpdateDate bool
}

// syncResult is the output of a sync pass.
type syncResult struct {
	reconcile.Report
}

func (r syncResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Sync complete: %d inserted, %d updated, %d skipped, %d failed (%d fetched)\n",
		len(r.Inserted), len(r.Updated), len(r.Skipped), len(r.Failed), r.Fetches)
	for _, id := range r.Inserted {
		fmt.Fprintf(w, "  + %s\n", id)
	}
	for _, id := range r.Updated {
		fmt.Fprintf(w, "  ~ %s\n", id)
	}
	for _, e := range r.Failed {
		fmt.Fprintf(w, "  ✗ %s\n", e.Error())
	}
	for _, e := range r.HookFailures {
		fmt.Fprintf(w, "  ! %s\n", e.Error())
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass against the remote catalog",
		Long: `Run a single sync pass: fetch the remote listing, download the
workflows that changed, merge them into the local library and persist.

Local edits made since the last sync are kept; only the remote graph is
taken for those workflows.

Exit codes:
  0 - Pass completed with no failed workflows
  1 - The listing could not be fetched, or some workflows failed
  2 - Command error (configuration, database)

Examples:
  flowsync sync
  flowsync sync --db ./flowsync.db --check-update-date
  flowsync sync --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides db_path)")
	cmd.Flags().BoolVar(&opts.CheckUpdateDate, "check-update-date", false, "skip remote entries not newer than the local copy")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	overrides := map[string]any{}
	if opts.Database != "" {
		overrides["db_path"] = opts.Database
	}
	if cmd.Flags().Changed("check-update-date") {
		overrides["sync.check_update_date"] = opts.CheckUpdateDate
	}

	cfg, logger, err := opts.loadConfig(cmd, overrides)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := openWorkspace(ctx, cfg, logger, true)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open workspace", err)
	}
	defer ws.Close()

	rec, err := ws.reconciler()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to set up sync", err)
	}

	report, err := rec.RunPass(ctx)
	if err != nil {
		code := ErrCodeGeneric
		var syncErr *reconcile.SyncError
		if errors.As(err, &syncErr) {
			code = string(syncErr.Code)
		}
		return formatter.Fail(ExitFailure, code, "sync pass failed", err)
	}

	result := syncResult{Report: report}
	if n := len(report.Failed); n > 0 {
		msg := fmt.Sprintf("%d workflow(s) failed to sync", n)
		if err := formatter.Partial(result, string(report.Failed[0].Code), msg); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result)
}
