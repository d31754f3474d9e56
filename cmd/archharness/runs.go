package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/archharness/internal/runs"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs of a workspace",
		Long: `List the runs recorded under <workspace>/.agent-harness/runs, newest first.

Examples:
  archharness runs --path ./my-app
  archharness runs --path ./my-app --json`,
		Args: cobra.NoArgs,
		RunE: runRuns,
	}
	cmd.Flags().String("path", "", "workspace path (default: current directory)")
	cmd.Flags().Bool("json", false, "print the runs as JSON")
	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	path, err := workspacePath(cmd)
	if err != nil {
		return err
	}
	list, err := runs.List(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintf(out, "No runs in %s\n", path)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tWORKFLOW\tSTATUS\tITERATIONS")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			orDash(r.Workflow),
			orDash(r.Status),
			r.Iterations,
		)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
