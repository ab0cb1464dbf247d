package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/preprocessing"
)

// CSVOptions controls LoadCSV.
type CSVOptions struct {
	// LabelColumn names the header column holding class labels. Empty means
	// the last column.
	LabelColumn string

	// Drop lists header columns to ignore, such as row ids.
	Drop []string

	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string, opts CSVOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return LoadCSV(f, opts)
}

// LoadCSV reads a header row followed by data rows. Every non-label column
// must hold finite decimal numbers. Labels are encoded with a
// preprocessing.LabelEncoder, so class indices follow the sorted label
// tokens and ClassNames holds the tokens.
func LoadCSV(r io.Reader, opts CSVOptions) (*Dataset, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	if len(records) < 2 {
		return nil, errors.NewModelError("LoadCSV", "need a header and at least one row", errors.ErrEmptyData)
	}

	headers := records[0]
	labelIdx := len(headers) - 1
	if opts.LabelColumn != "" {
		labelIdx = indexOf(headers, opts.LabelColumn)
		if labelIdx < 0 {
			return nil, errors.NewValidationError("label_column", "not found in header", opts.LabelColumn)
		}
	}
	drop := make(map[int]bool, len(opts.Drop))
	for _, name := range opts.Drop {
		i := indexOf(headers, name)
		if i < 0 {
			return nil, errors.NewValidationError("drop", "not found in header", name)
		}
		drop[i] = true
	}

	var featureCols []int
	var featureNames []string
	for j, h := range headers {
		if j == labelIdx || drop[j] {
			continue
		}
		featureCols = append(featureCols, j)
		featureNames = append(featureNames, strings.TrimSpace(h))
	}
	if len(featureCols) == 0 {
		return nil, errors.NewValidationError("columns", "no feature columns left", headers)
	}

	data := records[1:]
	X := mat.NewDense(len(data), len(featureCols), nil)
	labels := make([]string, len(data))
	for i, record := range data {
		for k, j := range featureCols {
			v, err := parseNumber(record[j])
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %q", i+2, headers[j])
			}
			X.Set(i, k, v)
		}
		labels[i] = strings.TrimSpace(record[labelIdx])
	}

	encoder := preprocessing.NewLabelEncoder()
	y, err := encoder.FitTransform(labels)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{X: X, Y: y, ClassNames: encoder.Classes, FeatureNames: featureNames}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// parseNumber accepts plain and exponent decimal notation only.
func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.NewValueError("LoadCSV", "not a finite number: \""+s+"\"")
	}
	return d.InexactFloat64(), nil
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}
