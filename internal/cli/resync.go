package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/order"
)

// ResyncOptions holds flags for the resync command.
type ResyncOptions struct {
	*RootOptions
	Group string
}

// NewResyncCommand creates the resync command.
func NewResyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Re-read a group's authoritative order",
		Long: `Re-read a group from the store, bypassing and invalidating the cache.

Run it after a partial failure reported by another process. The resync flag
that blocks further reorders is kept per process, so a command started after
the failure is never blocked by it; resync refreshes every cached view.

Example:
  ordinal resync --group course-1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Group, "group", "", "group ID (required)")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

// resyncResult is the payload of a successful resync.
type resyncResult struct {
	GroupID string   `json:"group_id"`
	Dense   bool     `json:"dense"`
	Items   itemList `json:"items"`
}

func (r resyncResult) String() string {
	state := "dense"
	if !r.Dense {
		state = "has gaps, run compact"
	}
	return fmt.Sprintf("resynced %s (%d items, %s)\n%s", r.GroupID, len(r.Items), state, r.Items)
}

func runResync(opts *ResyncOptions, cmd *cobra.Command) error {
	groupID, err := order.NormalizeID(opts.Group)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --group", err)
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		items, err := a.coord.Resync(ctx, groupID)
		if err != nil {
			return WrapExitError(reorderExitCode(err), "resync", err)
		}
		return a.out.Success(resyncResult{
			GroupID: groupID,
			Dense:   order.IsDense(items),
			Items:   itemList(items),
		})
	})
}
