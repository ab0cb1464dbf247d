// Package config loads the YAML description of a grid search run.
package config

import (
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/gridcv/metrics"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/report"
	"github.com/YuminosukeSato/gridcv/sklearn/model_selection"
)

// Config is one grid search run: data, model, grid, CV and outputs.
type Config struct {
	Dataset      Dataset              `yaml:"dataset"`
	Model        string               `yaml:"model"`
	Grid         model_selection.Grid `yaml:"grid"`
	CV           CV                   `yaml:"cv"`
	Scoring      string               `yaml:"scoring"`
	Direction    string               `yaml:"direction"`
	Policy       string               `yaml:"policy"`
	TrialTimeout time.Duration        `yaml:"trial_timeout"`
	Workers      int                  `yaml:"workers"`
	Refit        bool                 `yaml:"refit"`
	Output       Output               `yaml:"output"`
	History      History              `yaml:"history"`
	Log          Log                  `yaml:"log"`
}

// Dataset is either a CSV file or a synthetic classification problem.
type Dataset struct {
	Path      string     `yaml:"path"`
	Label     string     `yaml:"label"`
	Drop      []string   `yaml:"drop"`
	Synthetic *Synthetic `yaml:"synthetic"`
}

// Synthetic configures dataset.MakeClassification.
type Synthetic struct {
	Samples  int     `yaml:"samples"`
	Features int     `yaml:"features"`
	Classes  int     `yaml:"classes"`
	ClassSep float64 `yaml:"class_sep"`
	Noise    float64 `yaml:"noise"`
	Seed     uint64  `yaml:"seed"`
}

// CV controls the fold partition. Stratified defaults to true.
type CV struct {
	Folds      int    `yaml:"folds"`
	Stratified *bool  `yaml:"stratified"`
	Seed       uint64 `yaml:"seed"`
}

// Output selects the report format and the optional files written after the search.
type Output struct {
	Format string `yaml:"format"`
	JSON   string `yaml:"json"`
	Plot   string `yaml:"plot"`
	// PlotX is the parameter on the x axis; defaults to the first grid name.
	PlotX string `yaml:"plot_x"`
	Model string `yaml:"model"`
}

// History points at the SQLite database that records runs.
type History struct {
	DB string `yaml:"db"`
}

// Log sets the level and the console or json backend.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, defaults and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return &cfg, nil
}

// Validate fills defaults and checks every field. Cobra flag overrides are
// applied before calling it again.
func (cfg *Config) Validate() error {
	return validate(cfg)
}

func validate(cfg *Config) error {
	d := &cfg.Dataset
	switch {
	case d.Path == "" && d.Synthetic == nil:
		return errors.NewValidationError("dataset", "path or synthetic is required", nil)
	case d.Path != "" && d.Synthetic != nil:
		return errors.NewValidationError("dataset", "path and synthetic are mutually exclusive", d.Path)
	}
	if s := d.Synthetic; s != nil {
		if s.Samples == 0 {
			s.Samples = 300
		}
		if s.Features == 0 {
			s.Features = 4
		}
		if s.Classes == 0 {
			s.Classes = 3
		}
		if s.ClassSep == 0 {
			s.ClassSep = 2.5
		}
	}

	if cfg.Model == "" {
		return errors.NewValidationError("model", "model is required", nil)
	}
	if err := cfg.Grid.Validate(); err != nil {
		return err
	}

	if cfg.CV.Folds == 0 {
		cfg.CV.Folds = 5
	}
	if cfg.CV.Folds < 2 {
		return errors.NewValidationError("cv.folds", "must be at least 2", cfg.CV.Folds)
	}
	if cfg.CV.Stratified == nil {
		stratified := true
		cfg.CV.Stratified = &stratified
	}

	if cfg.Scoring == "" {
		cfg.Scoring = "log_loss"
	}
	if _, err := metrics.NewScorer(cfg.Scoring); err != nil {
		return err
	}
	if cfg.Direction != "" {
		if _, err := metrics.ParseDirection(cfg.Direction); err != nil {
			return err
		}
	}
	if cfg.Policy == "" {
		cfg.Policy = model_selection.Abort.String()
	}
	if _, err := model_selection.ParseFailurePolicy(cfg.Policy); err != nil {
		return err
	}
	if cfg.TrialTimeout < 0 {
		return errors.NewValidationError("trial_timeout", "must not be negative", cfg.TrialTimeout)
	}
	if cfg.Workers < 0 {
		return errors.NewValidationError("workers", "must not be negative", cfg.Workers)
	}

	if cfg.Output.Format == "" {
		cfg.Output.Format = "table"
	}
	if !slices.Contains(report.Formats, cfg.Output.Format) {
		return errors.NewValidationError("output.format", "unknown format", cfg.Output.Format)
	}
	if cfg.Output.Plot != "" {
		if cfg.Output.PlotX == "" {
			cfg.Output.PlotX = cfg.Grid.Names()[0]
		}
		if _, ok := cfg.Grid[cfg.Output.PlotX]; !ok {
			return errors.NewValidationError("output.plot_x", "not a grid parameter", cfg.Output.PlotX)
		}
	}
	if cfg.Output.Model != "" && !cfg.Refit {
		return errors.NewValidationError("output.model", "requires refit: true", cfg.Output.Model)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.Log.Level) {
		return errors.NewValidationError("log.level", "must be debug, info, warn or error", cfg.Log.Level)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		return errors.NewValidationError("log.format", "must be console or json", cfg.Log.Format)
	}
	return nil
}

// SearchOptions converts the cv, policy, timeout and worker settings into
// engine options.
func (cfg *Config) SearchOptions() ([]model_selection.Option, error) {
	policy, err := model_selection.ParseFailurePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	opts := []model_selection.Option{
		model_selection.WithNFolds(cfg.CV.Folds),
		model_selection.WithStratified(cfg.CV.Stratified == nil || *cfg.CV.Stratified),
		model_selection.WithSeed(cfg.CV.Seed),
		model_selection.WithFailurePolicy(policy),
		model_selection.WithTrialTimeout(cfg.TrialTimeout),
		model_selection.WithWorkers(cfg.Workers),
		model_selection.WithRefit(cfg.Refit),
	}
	if cfg.Direction != "" {
		dir, err := metrics.ParseDirection(cfg.Direction)
		if err != nil {
			return nil, err
		}
		opts = append(opts, model_selection.WithDirection(dir))
	}
	return opts, nil
}
