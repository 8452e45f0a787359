package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/order"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Group string
	Max   int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print cache invalidations as they happen",
		Long: `Subscribe to the Redis invalidation channel and print one line per
invalidated group until interrupted. Requires redis_url.

Examples:
  ordinal watch
  ordinal watch --group course-1 --max 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Group, "group", "", "only report this group")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "exit after N invalidations (0 = until interrupted)")

	return cmd
}

// invalidation is one message from the invalidation channel.
type invalidation struct {
	GroupID string `json:"group_id"`
}

func (i invalidation) String() string {
	return "invalidated " + i.GroupID
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	if opts.Max < 0 {
		return NewExitError(ExitCommandError, "--max must not be negative")
	}
	group := ""
	if opts.Group != "" {
		var err error
		if group, err = order.NormalizeID(opts.Group); err != nil {
			return WrapExitError(ExitCommandError, "invalid --group", err)
		}
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		if a.cache == nil {
			return NewExitError(ExitCommandError, "watch requires redis_url")
		}
		sub, err := a.cache.Subscribe(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "watch", err)
		}
		defer sub.Close()
		a.out.VerboseLog("watching for invalidations")

		seen := 0
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return fmt.Errorf("watch: subscription closed")
				}
				if group != "" && msg.Payload != group {
					continue
				}
				if err := a.out.Success(invalidation{GroupID: msg.Payload}); err != nil {
					return err
				}
				seen++
				if opts.Max > 0 && seen >= opts.Max {
					return nil
				}
			}
		}
	})
}
