package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lurchfeed/internal/flags"
	"github.com/zjrosen/lurchfeed/internal/history"
	"github.com/zjrosen/lurchfeed/internal/presentation"
)

var (
	historyState  string
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List past lurchfeed runs, newest first.

Runs are recorded in the SQLite database at history.path while the
history-persistence flag is on.

Examples:
  lurchfeed history
  lurchfeed history --state failed
  lurchfeed history --limit 5 --format json
  lurchfeed history --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		state, err := history.ParseState(historyState)
		if err != nil {
			return err
		}
		format, err := presentation.ParseFormat(historyFormat)
		if err != nil {
			return err
		}

		repo, closeHistory, err := openHistory(cfg, flags.New(cfg.Flags))
		if err != nil {
			return err
		}
		defer closeHistory()
		if repo == nil {
			repo = history.NewMemoryRepository()
		}

		return listHistory(cmd.OutOrStdout(), repo, history.ListFilter{State: state, Limit: historyLimit}, format)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyState, "state", "", "only runs in this state (running, completed, failed)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs, 0 for all")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(historyCmd)
}

func listHistory(w io.Writer, repo history.Repository, filter history.ListFilter, format presentation.Format) error {
	runs, err := repo.List(filter)
	if err != nil {
		return err
	}
	return presentation.NewFormatter(w).FormatRuns(presentation.FromRuns(runs), format)
}
