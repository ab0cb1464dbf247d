// Package log defines standard attribute keys for grid search operations.
//
// Keys follow a hierarchical naming convention (e.g. "search.config",
// "data.samples") so records from the engine, the models and the CLI can be
// filtered the same way.

package log

// Operation context
const (
	// ModelNameKey identifies the model family under search.
	// Examples: "GradientBoostingClassifier", "LogisticRegression"
	ModelNameKey = "model.name"

	// RunIDKey is the history identifier of a search run.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Examples: "model_selection", "history", "cli"
	ComponentKey = "ml.component"

	// PhaseKey indicates the trial phase: "fit", "predict" or "score".
	PhaseKey = "ml.phase"
)

// Search shape and progress
const (
	// ConfigKey is the canonical rendering of a hyperparameter configuration.
	ConfigKey = "search.config"

	// ConfigIndexKey is the position of a configuration in enumeration order.
	ConfigIndexKey = "search.config_index"

	// FoldKey is the zero-based fold index of a trial.
	FoldKey = "search.fold"

	ConfigsKey   = "search.configs"
	FoldsKey     = "search.folds"
	TrialsKey    = "search.trials"
	FailedKey    = "search.failed"
	PolicyKey    = "search.policy"
	WorkersKey   = "search.workers"
	TimeoutKey   = "search.trial_timeout"
	StratKey     = "search.stratified"
	ScorerKey    = "search.scorer"
	BestKey      = "search.best_config"
	DirectionKey = "search.direction"
)

// Data shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct class labels.
	ClassesKey = "data.classes"
)

// Performance and metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// ScoreKey records a fold score or an aggregated mean score.
	ScoreKey = "metrics.score"

	// StdKey records the standard deviation of fold scores.
	StdKey = "metrics.std"

	// IterationKey records the boosting round or optimizer iteration.
	IterationKey = "training.iteration"

	// LossKey records training loss.
	LossKey = "metrics.loss"
)

// Hyperparameters and configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// ConfigFileKey is the path of a YAML search config.
	ConfigFileKey = "config.file"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationSearch  = "search"
	OperationRefit   = "refit"
	OperationSplit   = "split"
)
