package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/gridcv/config"
	"github.com/YuminosukeSato/gridcv/core/model"
	"github.com/YuminosukeSato/gridcv/dataset"
	"github.com/YuminosukeSato/gridcv/history"
	"github.com/YuminosukeSato/gridcv/metrics"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/pkg/log"
	"github.com/YuminosukeSato/gridcv/report"
	"github.com/YuminosukeSato/gridcv/sklearn/model_selection"
)

type searchFlags struct {
	folds    int
	workers  int
	seed     uint64
	policy   string
	timeout  time.Duration
	format   string
	plot     string
	jsonOut  string
	history  string
	modelOut string
	logLevel string
}

func newSearchCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a cross-validated grid search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSearch(ctx, cfgFile, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.folds, "folds", 0, "override cv.folds")
	fl.IntVar(&f.workers, "workers", 0, "override workers (0 = all CPUs)")
	fl.Uint64Var(&f.seed, "seed", 0, "override cv.seed")
	fl.StringVar(&f.policy, "policy", "", "override policy (abort|continue)")
	fl.DurationVar(&f.timeout, "timeout", 0, "override trial_timeout")
	fl.StringVar(&f.format, "format", "", "override output.format (table|markdown|json)")
	fl.StringVar(&f.plot, "plot", "", "write the validation curve to this file")
	fl.StringVar(&f.jsonOut, "json", "", "write the JSON summary to this file")
	fl.StringVar(&f.history, "history", "", "record the run in this sqlite database")
	fl.StringVar(&f.modelOut, "model-out", "", "refit the best configuration and save it here")
	fl.StringVar(&f.logLevel, "log-level", "", "override log.level")
	return cmd
}

// apply copies the flags the user set onto cfg and re-validates it.
func (f *searchFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("folds") {
		cfg.CV.Folds = f.folds
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("seed") {
		cfg.CV.Seed = f.seed
	}
	if changed("policy") {
		cfg.Policy = f.policy
	}
	if changed("timeout") {
		cfg.TrialTimeout = f.timeout
	}
	if changed("format") {
		cfg.Output.Format = f.format
	}
	if changed("plot") {
		cfg.Output.Plot = f.plot
	}
	if changed("json") {
		cfg.Output.JSON = f.jsonOut
	}
	if changed("history") {
		cfg.History.DB = f.history
	}
	if changed("model-out") {
		cfg.Output.Model = f.modelOut
		cfg.Refit = true
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	return cfg.Validate()
}

func newLogger(cfg *config.Config, w io.Writer) (log.Logger, error) {
	if cfg.Log.Format == "json" {
		return log.SetupLogger(cfg.Log.Level, w)
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return log.NewConsoleLogger(w, level), nil
}

func loadDataset(cfg *config.Config) (*dataset.Dataset, error) {
	if s := cfg.Dataset.Synthetic; s != nil {
		opts := dataset.DefaultClassificationOptions()
		opts.NSamples = s.Samples
		opts.NFeatures = s.Features
		opts.NClasses = s.Classes
		opts.ClassSep = s.ClassSep
		if s.Noise > 0 {
			opts.Noise = s.Noise
		}
		opts.Seed = s.Seed
		return dataset.MakeClassification(opts)
	}
	return dataset.LoadCSVFile(cfg.Dataset.Path, dataset.CSVOptions{
		LabelColumn: cfg.Dataset.Label,
		Drop:        cfg.Dataset.Drop,
	})
}

func datasetName(cfg *config.Config) string {
	if cfg.Dataset.Path != "" {
		return cfg.Dataset.Path
	}
	s := cfg.Dataset.Synthetic
	return fmt.Sprintf("synthetic(n=%d, features=%d, classes=%d, seed=%d)", s.Samples, s.Features, s.Classes, s.Seed)
}

func runSearch(ctx context.Context, cfgPath string, cfg *config.Config, stdout, stderr io.Writer) error {
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	logger = logger.With(log.ConfigFileKey, cfgPath)
	log.SetLogger(logger)

	factory, err := lookupModel(cfg.Model, cfg.Grid)
	if err != nil {
		return err
	}
	scorer, err := metrics.NewScorer(cfg.Scoring)
	if err != nil {
		return err
	}
	opts, err := cfg.SearchOptions()
	if err != nil {
		return err
	}
	ds, err := loadDataset(cfg)
	if err != nil {
		return err
	}
	logger.Info("Dataset loaded",
		log.SamplesKey, ds.NSamples(),
		log.FeaturesKey, ds.NFeatures(),
		log.ClassesKey, ds.NClasses(),
	)

	search := model_selection.NewGridSearchCV(factory, cfg.Grid, scorer,
		append(opts, model_selection.WithLogger(logger))...)
	outcome, err := search.Fit(ctx, ds)
	if err != nil {
		return err
	}

	if err := report.Write(stdout, cfg.Output.Format, outcome); err != nil {
		return err
	}
	if cfg.Output.Format == "table" {
		printBest(stdout, outcome)
	}

	if cfg.Output.JSON != "" {
		if err := writeFile(cfg.Output.JSON, func(w io.Writer) error {
			return report.WriteJSON(w, outcome)
		}); err != nil {
			return err
		}
		logger.Info("Summary written", "path", cfg.Output.JSON)
	}
	if cfg.Output.Plot != "" {
		if err := ensureDir(cfg.Output.Plot); err != nil {
			return err
		}
		if err := report.RenderOutcome(cfg.Output.Plot, outcome, cfg.Output.PlotX); err != nil {
			return err
		}
		logger.Info("Plot written", "path", cfg.Output.Plot)
	}
	if cfg.Output.Model != "" && outcome.BestEstimator != nil {
		if err := ensureDir(cfg.Output.Model); err != nil {
			return err
		}
		if err := model.SaveModel(outcome.BestEstimator, cfg.Output.Model); err != nil {
			return errors.Wrap(err, "save best model")
		}
		if err := writeModelSummary(cfg.Output.Model+".json", outcome, ds); err != nil {
			return err
		}
		logger.Info("Best model saved", "path", cfg.Output.Model)
	}
	if cfg.History.DB != "" {
		store, err := history.NewStore(cfg.History.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.Save(outcome, history.Meta{Model: cfg.Model, Dataset: datasetName(cfg)})
		if err != nil {
			return err
		}
		logger.Info("Run recorded", log.RunIDKey, id, "db", cfg.History.DB)
		fmt.Fprintf(stdout, "run id: %s\n", id)
	}
	return nil
}

// writeModelSummary stores the metadata of the refit model next to its gob.
func writeModelSummary(path string, outcome *model_selection.SearchOutcome, ds *dataset.Dataset) error {
	sum := model.Summary{
		ModelType:  reflect.Indirect(reflect.ValueOf(outcome.BestEstimator)).Type().Name(),
		Params:     outcome.BestParams(),
		Classes:    outcome.BestEstimator.Classes(),
		ClassNames: ds.ClassNames,
		Features:   ds.FeatureNames,
		Scorer:     outcome.Scorer,
		CVScore:    outcome.Best.MeanScore,
		CVStd:      outcome.Best.StdScore,
		NFolds:     outcome.NFolds,
		CreatedAt:  time.Now().UTC(),
	}
	if err := sum.Validate(); err != nil {
		return err
	}
	data, err := sum.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encode model summary")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

func printBest(w io.Writer, outcome *model_selection.SearchOutcome) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\nbest: %s  %s=%.6f ± %.6f  (%s)\n",
		green(outcome.Best.Config.Key()), outcome.Scorer,
		outcome.Best.MeanScore, outcome.Best.StdScore, outcome.Duration.Round(time.Millisecond))
	if outcome.FailedTrials > 0 {
		fmt.Fprintln(w, yellow(fmt.Sprintf("%d of %d trials failed", outcome.FailedTrials, outcome.Trials)))
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
