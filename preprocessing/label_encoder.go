package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// LabelEncoder は文字列ラベルを 0..C-1 の密な整数クラスに変換する
//
// クラスはトークンの辞書順で番号付けされるため、行の並びに依存しない。
type LabelEncoder struct {
	// Classes はインデックス順のラベル名
	Classes []string

	index map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit はラベルの一意な集合を学習する
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	e.Classes = make([]string, 0, len(seen))
	for l := range seen {
		e.Classes = append(e.Classes, l)
	}
	sort.Strings(e.Classes)
	e.buildIndex()
	return nil
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, l := range e.Classes {
		e.index[l] = i
	}
}

// Transform はラベルをクラスインデックスに変換する
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	if e.Classes == nil {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	if e.index == nil {
		e.buildIndex()
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		c, ok := e.index[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", "unseen label \""+l+"\"")
		}
		out[i] = c
	}
	return out, nil
}

// FitTransform は学習と変換を同時に行う
func (e *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform はクラスインデックスを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(classes []int) ([]string, error) {
	if e.Classes == nil {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	out := make([]string, len(classes))
	for i, c := range classes {
		if c < 0 || c >= len(e.Classes) {
			return nil, errors.NewValidationError("class", "out of range", c)
		}
		out[i] = e.Classes[c]
	}
	return out, nil
}
