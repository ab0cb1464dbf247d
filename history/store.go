// Package history persists grid search runs in SQLite so that past searches
// can be listed and compared.
package history

import (
	"database/sql"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/report"
	"github.com/YuminosukeSato/gridcv/sklearn/model_selection"
)

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL,
	model         TEXT NOT NULL,
	dataset       TEXT,
	scorer        TEXT NOT NULL,
	direction     TEXT NOT NULL,
	policy        TEXT NOT NULL,
	n_folds       INTEGER NOT NULL,
	stratified    INTEGER NOT NULL,
	seed          TEXT NOT NULL,
	trials        INTEGER NOT NULL,
	failed_trials INTEGER NOT NULL,
	duration_ms   REAL NOT NULL,
	best_config   TEXT NOT NULL,
	best_mean     REAL NOT NULL,
	best_std      REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS configurations (
	run_id       TEXT NOT NULL,
	config_index INTEGER NOT NULL,
	config       TEXT NOT NULL,
	params_json  TEXT NOT NULL,
	mean_score   REAL NOT NULL,
	std_score    REAL NOT NULL,
	valid_folds  INTEGER NOT NULL,
	total_folds  INTEGER NOT NULL,
	status       TEXT NOT NULL,
	config_rank  INTEGER NOT NULL,
	mean_fit_ms  REAL NOT NULL,
	PRIMARY KEY (run_id, config_index),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS trials (
	run_id       TEXT NOT NULL,
	config_index INTEGER NOT NULL,
	fold         INTEGER NOT NULL,
	score        REAL,
	fit_ms       REAL NOT NULL,
	error        TEXT,
	PRIMARY KEY (run_id, config_index, fold),
	FOREIGN KEY (run_id, config_index) REFERENCES configurations(run_id, config_index)
);
`

// Meta describes what a run searched over.
type Meta struct {
	Model   string
	Dataset string
}

// Run is one stored search.
type Run struct {
	ID           string
	CreatedAt    time.Time
	Model        string
	Dataset      string
	Scorer       string
	Direction    string
	Policy       string
	NFolds       int
	Stratified   bool
	Seed         uint64
	Trials       int
	FailedTrials int
	DurationMs   float64
	BestConfig   string
	BestMean     float64
	BestStd      float64
}

// RunDetail is a run with its per-configuration rows, ranked first.
type RunDetail struct {
	Run
	Rows []report.Row
}

// Store manages search runs in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// connPragmas run on every pooled connection the driver opens.
var connPragmas = []string{"foreign_keys(1)", "journal_mode(WAL)", "busy_timeout(5000)"}

func dsn(path string) string {
	q := url.Values{"_pragma": connPragmas}
	return "file:" + path + "?" + q.Encode()
}

// NewStore opens (or creates) the database at path and runs migrations.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores outcome with every aggregate and trial in one transaction and
// returns the new run id.
func (s *Store) Save(outcome *model_selection.SearchOutcome, meta Meta) (string, error) {
	if outcome == nil {
		return "", errors.NewValueError("Save", "nil outcome")
	}
	id := uuid.New().String()
	sum := report.Summarize(outcome)

	tx, err := s.db.Begin()
	if err != nil {
		return "", errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, created_at, model, dataset, scorer, direction, policy, n_folds,
		 stratified, seed, trials, failed_trials, duration_ms, best_config, best_mean, best_std)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.now().UTC().Format(timeLayout), meta.Model, meta.Dataset,
		sum.Scorer, sum.Direction, sum.Policy, sum.NFolds, sum.Stratified, strconv.FormatUint(sum.Seed, 10),
		sum.Trials, sum.FailedTrials, sum.DurationMs, sum.Best.Config, sum.Best.Mean, sum.Best.Std,
	)
	if err != nil {
		return "", errors.Wrap(err, "insert run")
	}

	for _, r := range outcome.Results {
		params, err := json.Marshal(r.Config.Params())
		if err != nil {
			return "", errors.Wrapf(err, "marshal params of %s", r.Config)
		}
		_, err = tx.Exec(
			`INSERT INTO configurations (run_id, config_index, config, params_json, mean_score,
			 std_score, valid_folds, total_folds, status, config_rank, mean_fit_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, r.Index, r.Config.Key(), string(params), r.MeanScore, r.StdScore,
			r.ValidFolds, r.TotalFolds, r.Status().String(), r.Rank,
			float64(r.MeanFitTime.Microseconds())/1000,
		)
		if err != nil {
			return "", errors.Wrapf(err, "insert configuration %d", r.Index)
		}
		for _, t := range r.Trials {
			var score, msg interface{}
			if t.OK() {
				score = t.Score
			} else {
				msg = t.Err.Error()
			}
			_, err = tx.Exec(
				`INSERT INTO trials (run_id, config_index, fold, score, fit_ms, error)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				id, r.Index, t.Fold, score, float64(t.FitDuration.Microseconds())/1000, msg,
			)
			if err != nil {
				return "", errors.Wrapf(err, "insert trial %d/%d", r.Index, t.Fold)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit")
	}
	return id, nil
}

// Fixed-width UTC timestamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const runColumns = `run_id, created_at, model, dataset, scorer, direction, policy, n_folds,
	stratified, seed, trials, failed_trials, duration_ms, best_config, best_mean, best_std`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r       Run
		created string
		dataset sql.NullString
		seed    string
	)
	err := row.Scan(&r.ID, &created, &r.Model, &dataset, &r.Scorer, &r.Direction, &r.Policy,
		&r.NFolds, &r.Stratified, &seed, &r.Trials, &r.FailedTrials, &r.DurationMs,
		&r.BestConfig, &r.BestMean, &r.BestStd)
	if err != nil {
		return Run{}, err
	}
	r.Dataset = dataset.String
	if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return Run{}, errors.Wrap(err, "parse seed")
	}
	r.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return Run{}, errors.Wrap(err, "parse created_at")
	}
	return r, nil
}

// List returns stored runs, newest first.
func (s *Store) List() ([]Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate runs")
}

// Get loads one run with its configurations and trials.
func (s *Store) Get(id string) (*RunDetail, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "run %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query run")
	}

	detail := &RunDetail{Run: run}
	byIndex := make(map[int]int)

	rows, err := s.db.Query(
		`SELECT config_index, config, params_json, mean_score, std_score, valid_folds,
		 total_folds, status, config_rank, mean_fit_ms
		 FROM configurations WHERE run_id = ? ORDER BY config_index`, id)
	if err != nil {
		return nil, errors.Wrap(err, "query configurations")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			row    report.Row
			params string
		)
		if err := rows.Scan(&row.Index, &row.Config, &params, &row.Mean, &row.Std,
			&row.ValidFolds, &row.TotalFolds, &row.Status, &row.Rank, &row.MeanFitMs); err != nil {
			return nil, errors.Wrap(err, "scan configuration")
		}
		if err := json.Unmarshal([]byte(params), &row.Params); err != nil {
			return nil, errors.Wrapf(err, "decode params of %s", row.Config)
		}
		byIndex[row.Index] = len(detail.Rows)
		detail.Rows = append(detail.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate configurations")
	}

	trials, err := s.db.Query(
		`SELECT config_index, score, error FROM trials WHERE run_id = ?
		 ORDER BY config_index, fold`, id)
	if err != nil {
		return nil, errors.Wrap(err, "query trials")
	}
	defer trials.Close()
	for trials.Next() {
		var (
			index int
			score sql.NullFloat64
			msg   sql.NullString
		)
		if err := trials.Scan(&index, &score, &msg); err != nil {
			return nil, errors.Wrap(err, "scan trial")
		}
		i, ok := byIndex[index]
		if !ok {
			continue
		}
		if msg.Valid {
			detail.Rows[i].Failures = append(detail.Rows[i].Failures, msg.String)
		} else if score.Valid {
			detail.Rows[i].FoldScores = append(detail.Rows[i].FoldScores, score.Float64)
		}
	}
	if err := trials.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate trials")
	}

	report.SortRows(detail.Rows)
	return detail, nil
}
