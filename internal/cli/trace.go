package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/harness"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Group string // optional - filter to one group
	Type  string // optional - filter to one event type
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Scenario   string               `json:"scenario"`
	Pass       bool                 `json:"pass"`
	Timeline   []harness.TraceEvent `json:"timeline"`
	FinalOrder map[string][]string  `json:"final_order"`
	Stats      TraceStats           `json:"stats"`
	Errors     []string             `json:"errors,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents  int `json:"total_events"`
	Writes       int `json:"writes"`
	FailedWrites int `json:"failed_writes"`
	Operations   int `json:"operations"`
	MaxPosition  int `json:"max_position"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario-file>",
		Short: "Show the write timeline of a scenario",
		Long: `Run one scenario and print every position write and settled operation
in the order they happened.

The output includes:
- Timeline: writes (staging and commit), failed writes and outcomes
- Final order of every group
- Stats: write counts and the highest position used while staging

Examples:
  ordinal trace ./scenarios/move_last_to_front.yaml
  ordinal trace ./scenarios/batched_reverse.yaml --group module-7 --type write
  ordinal trace ./scenarios/partial_failure_resync.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Group, "group", "", "filter to one group")
	cmd.Flags().StringVar(&opts.Type, "type", "", "filter to one event type (write|write_failed|outcome|delete|resync)")

	return cmd
}

func runTrace(opts *TraceOptions, scenarioFile string, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "load scenario", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := harness.Run(ctx, scenario)
	if err != nil {
		return WrapExitError(ExitFailure, "run scenario", err)
	}

	trace := TraceResult{
		Scenario:   scenario.Name,
		Pass:       result.Pass,
		Timeline:   filterTimeline(result.Trace, opts.Group, opts.Type),
		FinalOrder: result.FinalOrder,
		Errors:     result.Errors,
	}
	trace.Stats = traceStats(trace.Timeline)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, trace)
	}
	return outputTraceText(cmd.OutOrStdout(), trace)
}

func filterTimeline(events []harness.TraceEvent, group, typ string) []harness.TraceEvent {
	out := make([]harness.TraceEvent, 0, len(events))
	for _, ev := range events {
		if group != "" && ev.Group != group {
			continue
		}
		if typ != "" && ev.Type != typ {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func traceStats(events []harness.TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Type {
		case harness.EventWrite:
			stats.Writes++
			stats.MaxPosition = max(stats.MaxPosition, ev.Position)
		case harness.EventWriteFailed:
			stats.FailedWrites++
		case harness.EventOutcome:
			stats.Operations++
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult) error {
	fmt.Fprintf(w, "Trace for Scenario: %s\n", result.Scenario)
	fmt.Fprintf(w, "Status: %s\n", passStatus(result.Pass))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Final Order ===")
	for _, group := range slices.Sorted(maps.Keys(result.FinalOrder)) {
		fmt.Fprintf(w, "  %s: %v\n", group, result.FinalOrder[group])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events:  %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Writes:        %d\n", result.Stats.Writes)
	fmt.Fprintf(w, "  Failed Writes: %d\n", result.Stats.FailedWrites)
	fmt.Fprintf(w, "  Operations:    %d\n", result.Stats.Operations)
	fmt.Fprintf(w, "  Max Position:  %d\n", result.Stats.MaxPosition)

	for _, e := range result.Errors {
		fmt.Fprintf(w, "\n✗ %s", e)
	}
	if len(result.Errors) > 0 {
		fmt.Fprintln(w)
	}
	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, ev harness.TraceEvent) {
	switch ev.Type {
	case harness.EventWrite:
		fmt.Fprintf(w, "  [%d] SET  %s/%s -> %d\n", ev.Seq, ev.Group, ev.Item, ev.Position)
	case harness.EventWriteFailed:
		fmt.Fprintf(w, "  [%d] FAIL %s/%s -> %d\n", ev.Seq, ev.Group, ev.Item, ev.Position)
	case harness.EventOutcome:
		line := fmt.Sprintf("  [%d] %s %s: %s", ev.Seq, ev.Op, ev.Group, ev.Kind)
		if ev.Reason != "" {
			line += " (" + ev.Reason + ")"
		}
		fmt.Fprintf(w, "%s, %d writes\n", line, ev.Writes)
	case harness.EventDelete:
		fmt.Fprintf(w, "  [%d] DEL  %s/%s\n", ev.Seq, ev.Group, ev.Item)
	case harness.EventResync:
		fmt.Fprintf(w, "  [%d] RESYNC %s\n", ev.Seq, ev.Group)
	}
}

// passStatus returns a human-readable scenario status.
func passStatus(pass bool) string {
	if pass {
		return "Pass"
	}
	return "Fail"
}
