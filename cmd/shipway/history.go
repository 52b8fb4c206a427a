package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/artpar/shipway/internal/shell/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newHistoryCmd(exitCode *int) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show the outcome of recent runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := printHistory(cmd, limit); err != nil {
				fmt.Fprintln(os.Stderr, err)
				*exitCode = domain.ExitUnexpectedFault
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func printHistory(cmd *cobra.Command, limit int) error {
	paths, err := defaultPaths()
	if err != nil {
		return err
	}
	if _, err := os.Stat(paths.historyDB); err != nil {
		fmt.Println("no runs recorded yet")
		return nil
	}

	store, err := history.Open(paths.historyDB)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tPROJECT\tRESULT\tSTAGE\tMESSAGE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Project,
			outcomeLabel(run),
			string(run.Stage),
			run.Message,
		)
	}
	return w.Flush()
}

func outcomeLabel(run domain.RunResult) string {
	if run.Success() {
		return color.GreenString("ok")
	}
	return color.RedString("fail(%d)", run.ExitCode)
}
