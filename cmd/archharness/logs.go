package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/archharness/internal/events"
	"github.com/fyrsmithlabs/archharness/internal/monitor"
	"github.com/fyrsmithlabs/archharness/internal/runs"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <run-dir>",
		Short: "Print the event log of a run",
		Long: `Print the events of a run directory, one line per event.

With --follow the command keeps printing new events until the run ends.

Examples:
  archharness logs ./my-app/.agent-harness/runs/20260102T100000Z
  archharness logs <run-dir> --role builder --grep lint
  archharness logs <run-dir> --follow`,
		Args: cobra.ExactArgs(1),
		RunE: runLogs,
	}
	f := cmd.Flags()
	f.String("role", "", "only events from this agent role")
	f.String("grep", "", "only events whose type, message or data contain this term")
	f.Int("limit", -1, "print at most the last N matching events (-1: all)")
	f.Bool("follow", false, "keep printing events until the run ends")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := args[0]
	f := cmd.Flags()

	var filter events.Filter
	filter.Role, _ = f.GetString("role")
	filter.Search, _ = f.GetString("grep")
	filter.Limit, _ = f.GetInt("limit")
	if filter.Limit == 0 {
		filter.Limit = -1
	}

	out := cmd.OutOrStdout()
	emit := func(ev events.Event) {
		fmt.Fprintln(out, monitor.FormatEvent(ev))
	}

	if follow, _ := f.GetBool("follow"); follow {
		return events.Follow(cmd.Context(), filepath.Join(dir, events.FileName), func(ev events.Event) {
			if filter.Matches(ev) {
				emit(ev)
			}
		})
	}

	evs, err := runs.Events(dir, filter)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		emit(ev)
	}
	return nil
}
