package model

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は 0 始まりの密なクラスインデックスの列ベクトル。
	Fit(X, y mat.Matrix) error
}

// ContextFitter はキャンセル・タイムアウトを協調的に観測できるモデルのインターフェース
//
// グリッドサーチエンジンは試行ごとの期限付き context を渡す。実装は学習ループの各反復で
// ctx.Err() を確認し、期限切れなら ctx.Err() をそのまま返すこと。
type ContextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// ProbaPredictor はクラス確率を予測できるモデルのインターフェース
type ProbaPredictor interface {
	// PredictProba は行ごとのクラス確率を返す。列の順序は Classes() に一致する。
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対するクラスラベルを列ベクトルで返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier はグリッドサーチで評価される分類モデル
type Classifier interface {
	Fitter
	ProbaPredictor

	// Classes は学習時に観測したクラスラベルを昇順で返す
	Classes() []int
}

// Factory は Configuration のパラメータから未学習の Classifier を生成する。
// 未知のパラメータや不正な値はエラーとして返すこと。
type Factory func(params map[string]interface{}) (Classifier, error)

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// FitWithContext は m が ContextFitter なら FitContext を、そうでなければ Fit を呼ぶ。
func FitWithContext(ctx context.Context, m Fitter, X, y mat.Matrix) error {
	if cf, ok := m.(ContextFitter); ok {
		return cf.FitContext(ctx, X, y)
	}
	return m.Fit(X, y)
}
