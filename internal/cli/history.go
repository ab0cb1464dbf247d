package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/gridcv/config"
	"github.com/YuminosukeSato/gridcv/history"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/report"
)

func newHistoryCmd() *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded search runs",
	}
	cmd.PersistentFlags().StringVar(&db, "db", "", "history database (default: history.db of the config)")

	open := func() (*history.Store, error) {
		path := db
		if path == "" {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return nil, errors.Wrap(err, "no --db given")
			}
			path = cfg.History.DB
		}
		if path == "" {
			return nil, errors.NewValidationError("db", "no history database configured", nil)
		}
		return history.NewStore(path)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tMODEL\tSCORER\tTRIALS\tFAILED\tBEST\tMEAN")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%.6f\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Model, r.Scorer,
					r.Trials, r.FailedTrials, r.BestConfig, r.BestMean)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the ranked results of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			run, err := store.Get(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "run %s  %s  model=%s  dataset=%s\n",
				run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"), run.Model, run.Dataset)
			fmt.Fprintf(w, "scorer=%s (%s)  folds=%d  policy=%s  trials=%d  failed=%d  duration=%.0fms\n",
				run.Scorer, run.Direction, run.NFolds, run.Policy, run.Trials, run.FailedTrials, run.DurationMs)
			if err := report.WriteRowsTable(w, run.Rows); err != nil {
				return err
			}
			for _, row := range run.Rows {
				for _, msg := range row.Failures {
					fmt.Fprintf(w, "  %s: %s\n", row.Config, msg)
				}
			}
			return nil
		},
	})
	return cmd
}
