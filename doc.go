// Package gridcv provides k-fold cross-validated hyperparameter grid search
// for Go classifiers.
//
// gridcv evaluates every combination of a parameter grid on every fold of a
// stratified (or plain) k-fold split, aggregates the fold scores per
// combination and selects the best one. Trials run on a bounded worker pool
// with optional per-trial timeouts, cooperative cancellation and an
// abort/continue failure policy.
//
// # Installation
//
//	go get github.com/YuminosukeSato/gridcv
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//	    "os"
//
//	    "github.com/YuminosukeSato/gridcv/dataset"
//	    "github.com/YuminosukeSato/gridcv/metrics"
//	    "github.com/YuminosukeSato/gridcv/report"
//	    "github.com/YuminosukeSato/gridcv/sklearn/ensemble"
//	    "github.com/YuminosukeSato/gridcv/sklearn/model_selection"
//	)
//
//	func main() {
//	    ds, err := dataset.MakeClassification(dataset.DefaultClassificationOptions())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    grid := model_selection.Grid{
//	        "learning_rate": {0.001, 0.01, 0.1},
//	        "max_depth":     {2, 3},
//	    }
//	    search := model_selection.NewGridSearchCV(ensemble.Factory, grid, metrics.LogLoss{},
//	        model_selection.WithNFolds(10),
//	        model_selection.WithSeed(7),
//	    )
//	    outcome, err := search.Fit(context.Background(), ds)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    report.WriteTable(os.Stdout, outcome)
//	}
//
// # Packages
//
//   - sklearn/model_selection: Grid, fold partitioner and GridSearchCV
//   - sklearn/ensemble: GradientBoostingClassifier
//   - sklearn/linear_model: LogisticRegression
//   - metrics: scorers (log_loss, accuracy, error_rate, roc_auc)
//   - report: tables, JSON and validation curve plots
//   - history: SQLite record of past searches
//   - config: YAML run description for the gridcv command
//   - dataset: CSV loading and synthetic data
//   - preprocessing: LabelEncoder, StandardScaler, MinMaxScaler
//   - core/model: estimator interfaces, parameter mapping, persistence
//   - core/parallel: parallel helpers and the bounded worker pool
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # Command line
//
//	gridcv search --config search.yaml --plot curve.png --history runs.db
//	gridcv history list --db runs.db
//	gridcv history show <run-id> --db runs.db
//	gridcv validate --config search.yaml
//
// # License
//
// gridcv is released under the MIT License.
package gridcv
