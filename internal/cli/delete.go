package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flowsync/internal/records"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Database string
}

type deleteResult struct {
	Requested []string `json:"requested"`
	Removed   []string `json:"removed"`
}

func (r deleteResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Deleted %d of %d workflow(s)\n", len(r.Removed), len(r.Requested))
	for _, id := range r.Removed {
		fmt.Fprintf(w, "  - %s\n", id)
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete local workflows",
		Long: `Delete workflows from the local library.

Hosted or backed-up workflows are deleted from the remote API first
(requires catalog.api_url); if that fails nothing is deleted locally.
Per-workflow state and drafts are removed and triggers are torn down.
Unknown ids are ignored.

Examples:
  flowsync delete wf-1
  flowsync delete wf-1 wf-2 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides db_path)")

	return cmd
}

func runDelete(opts *DeleteOptions, ids []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	overrides := map[string]any{}
	if opts.Database != "" {
		overrides["db_path"] = opts.Database
	}
	cfg, logger, err := opts.loadConfig(cmd, overrides)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := openWorkspace(ctx, cfg, logger, false)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open workspace", err)
	}
	defer ws.Close()

	removed, err := ws.lib.Delete(ctx, ids...)
	switch {
	case errors.Is(err, records.ErrBackupDelete):
		return formatter.Fail(ExitFailure, ErrCodeRemote, "remote backup delete failed", err)
	case err != nil && removed == nil:
		return formatter.Fail(ExitFailure, ErrCodeStorage, "delete failed", err)
	case err != nil:
		// Removed from memory, but a flush or a trigger teardown failed.
		result := deleteResult{Requested: ids, Removed: removed}
		if werr := formatter.Partial(result, ErrCodeStorage, err.Error()); werr != nil {
			return werr
		}
		return WrapExitError(ExitFailure, "delete incomplete", err)
	}

	if len(removed) == 0 {
		formatter.VerboseLog("no matching workflows for %v", ids)
	}
	return formatter.Success(deleteResult{Requested: ids, Removed: removed})
}
