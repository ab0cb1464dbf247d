package model

import (
	"encoding/json"
	"time"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// Summary は再学習済みモデルのメタデータ（gob 本体と並べて JSON で保存する）
type Summary struct {
	// ModelType はモデルの種類（GradientBoostingClassifier, LogisticRegression等）
	ModelType string `json:"model_type"`

	// Params は最良 Configuration のハイパーパラメータ
	Params map[string]interface{} `json:"params"`

	// Classes は学習時のクラスラベル
	Classes []int `json:"classes"`

	// ClassNames は Classes に対応する元のラベル名（オプション）
	ClassNames []string `json:"class_names,omitempty"`

	// Features は特徴量の名前（オプション）
	Features []string `json:"features,omitempty"`

	Scorer    string    `json:"scorer"`
	CVScore   float64   `json:"cv_score"`
	CVStd     float64   `json:"cv_std"`
	NFolds    int       `json:"n_folds"`
	CreatedAt time.Time `json:"created_at"`
}

// ToJSON はSummaryをJSON形式にシリアライズ
func (s *Summary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON はJSON形式からSummaryをデシリアライズ
func (s *Summary) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, s); err != nil {
		return errors.Wrap(err, "failed to decode model summary")
	}
	return s.Validate()
}

// Validate はSummaryの妥当性を検証
func (s *Summary) Validate() error {
	if s.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", s.ModelType)
	}
	if len(s.Classes) < 2 {
		return errors.NewValidationError("classes", "a classifier needs at least two classes", s.Classes)
	}
	if len(s.ClassNames) > 0 && len(s.ClassNames) != len(s.Classes) {
		return errors.NewValidationError("class_names", "must match classes in length", s.ClassNames)
	}
	return nil
}
