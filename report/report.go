// Package report renders grid search outcomes: a ranked summary as a text
// table, Markdown or JSON, and validation curves grouped into plot series.
//
// Every function here is a pure function of the search results.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/sklearn/model_selection"
)

// Row is one configuration of the ranked summary.
type Row struct {
	Rank       int                    `json:"rank"` // 0 when not eligible
	Index      int                    `json:"index"`
	Config     string                 `json:"config"`
	Params     map[string]interface{} `json:"params"`
	Mean       float64                `json:"mean"`
	Std        float64                `json:"std"`
	FoldScores []float64              `json:"fold_scores"`
	ValidFolds int                    `json:"valid_folds"`
	TotalFolds int                    `json:"total_folds"`
	Status     string                 `json:"status"`
	MeanFitMs  float64                `json:"mean_fit_ms"`
	Failures   []string               `json:"failures,omitempty"`
}

// Summary is the JSON document of a search outcome.
type Summary struct {
	Scorer       string  `json:"scorer"`
	Direction    string  `json:"direction"`
	Policy       string  `json:"policy"`
	NFolds       int     `json:"n_folds"`
	Stratified   bool    `json:"stratified"`
	Seed         uint64  `json:"seed"`
	Trials       int     `json:"trials"`
	FailedTrials int     `json:"failed_trials"`
	DurationMs   float64 `json:"duration_ms"`
	Best         Row     `json:"best"`
	Results      []Row   `json:"results"`
}

// Rows returns eligible configurations by rank, then the ineligible ones in
// enumeration order.
func Rows(results []model_selection.AggregatedResult) []Row {
	rows := make([]Row, len(results))
	for i, r := range results {
		rows[i] = newRow(r)
	}
	SortRows(rows)
	return rows
}

// SortRows orders rows by rank with ineligible rows (rank 0) last, keeping
// the relative order of equal ranks.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(a, b int) bool {
		return model_selection.RankedBefore(rows[a].Rank, rows[b].Rank)
	})
}

func newRow(r model_selection.AggregatedResult) Row {
	row := Row{
		Rank:       r.Rank,
		Index:      r.Index,
		Config:     r.Config.Key(),
		Params:     r.Config.Params(),
		Mean:       r.MeanScore,
		Std:        r.StdScore,
		FoldScores: append([]float64{}, r.FoldScores...),
		ValidFolds: r.ValidFolds,
		TotalFolds: r.TotalFolds,
		Status:     r.Status().String(),
		MeanFitMs:  float64(r.MeanFitTime.Microseconds()) / 1000,
	}
	for _, err := range r.Failures() {
		row.Failures = append(row.Failures, err.Error())
	}
	return row
}

// Summarize builds the JSON document of outcome.
func Summarize(outcome *model_selection.SearchOutcome) Summary {
	return Summary{
		Scorer:       outcome.Scorer,
		Direction:    outcome.Direction.String(),
		Policy:       outcome.Policy.String(),
		NFolds:       outcome.NFolds,
		Stratified:   outcome.Stratified,
		Seed:         outcome.Seed,
		Trials:       outcome.Trials,
		FailedTrials: outcome.FailedTrials,
		DurationMs:   float64(outcome.Duration.Microseconds()) / 1000,
		Best:         newRow(outcome.Best),
		Results:      Rows(outcome.Results),
	}
}

// Formats accepted by Write.
var Formats = []string{"table", "markdown", "json"}

// Write renders outcome in the given format: "table", "markdown" or "json".
func Write(w io.Writer, format string, outcome *model_selection.SearchOutcome) error {
	switch format {
	case "table", "":
		return WriteTable(w, outcome)
	case "markdown":
		return WriteMarkdown(w, outcome)
	case "json":
		return WriteJSON(w, outcome)
	default:
		return errors.NewValidationError("format", "must be one of "+strings.Join(Formats, ", "), format)
	}
}

// WriteTable writes the ranked summary as an aligned text table. Ineligible
// configurations show "-" as rank.
func WriteTable(w io.Writer, outcome *model_selection.SearchOutcome) error {
	fmt.Fprintf(w, "scorer=%s (%s)  folds=%d  policy=%s  trials=%d  failed=%d\n",
		outcome.Scorer, outcome.Direction, outcome.NFolds, outcome.Policy, outcome.Trials, outcome.FailedTrials)

	return WriteRowsTable(w, Rows(outcome.Results))
}

// WriteRowsTable writes rows as an aligned text table in the given order.
func WriteRowsTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCONFIGURATION\tMEAN\tSTD\tFOLDS\tSTATUS")
	fmt.Fprintln(tw, "----\t-------------\t----\t---\t-----\t------")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\t%d/%d\t%s\n",
			rankLabel(r.Rank), r.Config, r.Mean, r.Std, r.ValidFolds, r.TotalFolds, r.Status)
	}
	return tw.Flush()
}

// WriteMarkdown writes the ranked summary as a Markdown table.
func WriteMarkdown(w io.Writer, outcome *model_selection.SearchOutcome) error {
	fmt.Fprintf(w, "**Best:** `%s` %s = %.6f ± %.6f\n\n",
		outcome.Best.Config.Key(), outcome.Scorer, outcome.Best.MeanScore, outcome.Best.StdScore)
	fmt.Fprintln(w, "| Rank | Configuration | Mean | Std | Folds | Status |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|")
	for _, r := range Rows(outcome.Results) {
		fmt.Fprintf(w, "| %s | `%s` | %.6f | %.6f | %d/%d | %s |\n",
			rankLabel(r.Rank), r.Config, r.Mean, r.Std, r.ValidFolds, r.TotalFolds, r.Status)
	}
	return nil
}

// WriteJSON writes Summarize(outcome) as indented JSON.
func WriteJSON(w io.Writer, outcome *model_selection.SearchOutcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Summarize(outcome))
}

func rankLabel(rank int) string {
	if rank == 0 {
		return "-"
	}
	return fmt.Sprint(rank)
}
