package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
}

// listEntry is one local workflow as printed by list.
type listEntry struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Fingerprint     string `json:"fingerprint"`
	UpdatedAt       int64  `json:"updatedAt"`
	IsDisabled      bool   `json:"isDisabled"`
	LocallyModified bool   `json:"locallyModified"`
}

type listResult struct {
	Workflows []listEntry `json:"workflows"`
}

func (r listResult) renderText(w io.Writer) {
	if len(r.Workflows) == 0 {
		fmt.Fprintln(w, "No workflows.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFINGERPRINT\tUPDATED\tFLAGS")
	for _, e := range r.Workflows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, shortHash(e.Fingerprint), formatMillis(e.UpdatedAt), flags(e))
	}
	tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func flags(e listEntry) string {
	var out []string
	if e.IsDisabled {
		out = append(out, "disabled")
	}
	if e.LocallyModified {
		out = append(out, "modified")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List local workflows",
		Long: `List the workflows in the local library, ordered by id.

The "modified" flag marks workflows edited locally since their last sync.

Examples:
  flowsync list
  flowsync list --db ./flowsync.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides db_path)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
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

	result := listResult{Workflows: []listEntry{}}
	for _, rec := range ws.lib.List() {
		result.Workflows = append(result.Workflows, listEntry{
			ID:              rec.ID,
			Name:            rec.Name,
			Fingerprint:     rec.Fingerprint,
			UpdatedAt:       rec.UpdatedAt,
			IsDisabled:      rec.IsDisabled,
			LocallyModified: rec.LocallyModified(),
		})
	}
	return formatter.Success(result)
}
