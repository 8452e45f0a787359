package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/engine"
	"github.com/roach88/ordinal/internal/order"
)

// ReorderOptions holds flags for the reorder command.
type ReorderOptions struct {
	*RootOptions
	Group string
	From  int
	To    int
}

// NewReorderCommand creates the reorder command.
func NewReorderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReorderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Move one item to a new index",
		Long: `Move the item at index --from to index --to. Indices are zero-based
offsets into the group in position order; items in between shift by one.

Exit codes:
  0 - Reorder succeeded (including no-op moves)
  1 - Rejected, partially applied, or the store failed
  2 - Invalid arguments

Example:
  ordinal reorder --group course-1 --from 3 --to 0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mv := order.Move{FromIndex: opts.From, ToIndex: opts.To}
			return runCoordinated(opts.RootOptions, cmd, "reorder", func(ctx context.Context, c *engine.Coordinator) (engine.Result, error) {
				return c.Reorder(ctx, opts.Group, mv)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Group, "group", "", "group ID (required)")
	cmd.Flags().IntVar(&opts.From, "from", 0, "current index of the item")
	cmd.Flags().IntVar(&opts.To, "to", 0, "target index of the item")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// PermuteOptions holds flags for the permute command.
type PermuteOptions struct {
	*RootOptions
	Group string
	Order []string
}

// NewPermuteCommand creates the permute command.
func NewPermuteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PermuteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "permute",
		Short: "Put a group in a given order",
		Long: `Reorder a group to match --order, which must name every item of the
group exactly once. Gaps are closed as part of the reorder.

Example:
  ordinal permute --group course-1 --order advanced,intro,basics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinated(opts.RootOptions, cmd, "permute", func(ctx context.Context, c *engine.Coordinator) (engine.Result, error) {
				return c.ReorderToPermutation(ctx, opts.Group, opts.Order)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Group, "group", "", "group ID (required)")
	cmd.Flags().StringSliceVar(&opts.Order, "order", nil, "comma-separated item IDs in the desired order (required)")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

// CompactOptions holds flags for the compact command.
type CompactOptions struct {
	*RootOptions
	Group string
}

// NewCompactCommand creates the compact command.
func NewCompactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Close gaps in a group's positions",
		Long: `Renumber a group to positions 1..N keeping its current order.
A group that is already dense is left untouched.

Example:
  ordinal compact --group course-1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinated(opts.RootOptions, cmd, "compact", func(ctx context.Context, c *engine.Coordinator) (engine.Result, error) {
				return c.Compact(ctx, opts.Group)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Group, "group", "", "group ID (required)")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

// runCoordinated runs one coordinator call and reports its result.
func runCoordinated(
	opts *RootOptions,
	cmd *cobra.Command,
	op string,
	call func(ctx context.Context, c *engine.Coordinator) (engine.Result, error),
) error {
	return withApp(opts, cmd, func(ctx context.Context, a *app) error {
		res, err := call(ctx, a.coord)
		if err != nil {
			return reportReorderError(a.out, op, res, err)
		}
		a.out.VerboseLog("%s settled in state %s after %s", op, res.State, res.Duration)
		return a.out.Success(reorderResult{Op: op, Result: res})
	})
}
