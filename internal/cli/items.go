package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/order"
	"github.com/roach88/ordinal/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Group    string
	Items    []string
	Generate int
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Append items to a group",
		Long: `Append items to the end of a group, in the order given.

Examples:
  ordinal seed --group course-1 --items intro,basics,advanced
  ordinal seed --group course-1 --generate 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Group, "group", "", "group ID (required)")
	cmd.Flags().StringSliceVar(&opts.Items, "items", nil, "comma-separated item IDs")
	cmd.Flags().IntVar(&opts.Generate, "generate", 0, "append N items with generated IDs")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	ids := opts.Items
	if opts.Generate < 0 {
		return NewExitError(ExitCommandError, "--generate must not be negative")
	}
	for range opts.Generate {
		ids = append(ids, uuid.Must(uuid.NewV7()).String())
	}
	if len(ids) == 0 {
		return NewExitError(ExitCommandError, "nothing to seed: pass --items or --generate")
	}

	groupID, err := order.NormalizeID(opts.Group)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --group", err)
	}
	ids, err = order.NormalizeIDs(ids)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --items", err)
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		created := make(itemList, 0, len(ids))
		for _, id := range ids {
			it, err := a.store.AppendItem(ctx, order.Item{ID: id, GroupID: groupID, Title: id})
			if err != nil {
				if errors.Is(err, store.ErrItemExists) {
					return WrapExitError(ExitCommandError, "seed", err)
				}
				return WrapExitError(ExitFailure, "seed", err)
			}
			created = append(created, it)
		}
		if a.cache != nil {
			a.cache.Invalidate(ctx, groupID)
		}
		a.out.VerboseLog("seeded %d items into %s", len(created), groupID)
		return a.out.Success(created)
	})
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Group string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a group in position order",
		Long: `List the items of a group in position order.

With redis_url configured the order is served from the cache when present.

Example:
  ordinal list --group course-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Group, "group", "", "group ID (required)")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	groupID, err := order.NormalizeID(opts.Group)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --group", err)
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		items, err := a.listGroup(ctx, groupID)
		if err != nil {
			return WrapExitError(ExitFailure, "list", err)
		}
		return a.out.Success(itemList(items))
	})
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Item string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an item, leaving a gap",
		Long: `Delete an item. Its group keeps a gap at the item's position until the
next reorder or compaction of that group.

Example:
  ordinal delete --item basics && ordinal compact --group course-1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Item, "item", "", "item ID (required)")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

// deleteResult is the payload of a successful delete.
type deleteResult struct {
	ItemID   string `json:"item_id"`
	GroupID  string `json:"group_id"`
	Position int    `json:"position"`
}

func (r deleteResult) String() string {
	return fmt.Sprintf("deleted %s from %s (position %d)", r.ItemID, r.GroupID, r.Position)
}

func runDelete(opts *DeleteOptions, cmd *cobra.Command) error {
	itemID, err := order.NormalizeID(opts.Item)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --item", err)
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		it, err := a.store.GetItem(ctx, itemID)
		if err == nil {
			err = a.store.DeleteItem(ctx, itemID)
		}
		if errors.Is(err, order.ErrItemNotFound) {
			if fmtErr := a.out.Error("E_NOT_FOUND", err.Error(), nil); fmtErr != nil {
				return fmtErr
			}
			return WrapExitError(ExitCommandError, "delete", err)
		}
		if err != nil {
			return WrapExitError(ExitFailure, "delete", err)
		}
		if a.cache != nil {
			a.cache.Invalidate(ctx, it.GroupID)
		}
		return a.out.Success(deleteResult{ItemID: it.ID, GroupID: it.GroupID, Position: it.Position})
	})
}
