// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// scikit-learnの警告・例外システムにインスパイアされており、グリッドサーチと交差検証で
// 発生する失敗を構造化されたエラー情報として扱います。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("gridcv-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は最適化アルゴリズムが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// ===========================================================================
//
//	汎用のエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `PredictProba` などを呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("gridcv: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("gridcv: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("gridcv: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("gridcv: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gridcv: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("gridcv: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	グリッドサーチ・交差検証のエラー型
//
// ===========================================================================

// InvalidFoldCountError は分割数 K がサンプル数に対して不正な場合のエラーです。
// K < 2 または K > N のとき、試行を一つも実行する前に返されます。
type InvalidFoldCountError struct {
	NFolds   int
	NSamples int
	Reason   string
}

func (e *InvalidFoldCountError) Error() string {
	return fmt.Sprintf("gridcv: invalid fold count %d for %d samples: %s", e.NFolds, e.NSamples, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InvalidFoldCountError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("n_folds", e.NFolds).
		Int("n_samples", e.NSamples).
		Str("reason", e.Reason).
		Str("type", "InvalidFoldCountError")
}

// NewInvalidFoldCountError は新しいInvalidFoldCountErrorを作成し、スタックトレースを付与します。
func NewInvalidFoldCountError(nFolds, nSamples int, reason string) error {
	return errors.WithStack(&InvalidFoldCountError{NFolds: nFolds, NSamples: nSamples, Reason: reason})
}

// InvalidGridError はハイパーパラメータグリッドが不正な場合のエラーです。
// 値リストが空のパラメータ、または空のグリッドで発生します。
type InvalidGridError struct {
	Param  string
	Reason string
}

func (e *InvalidGridError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("gridcv: invalid grid: %s", e.Reason)
	}
	return fmt.Sprintf("gridcv: invalid grid: parameter '%s': %s", e.Param, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InvalidGridError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("reason", e.Reason).
		Str("type", "InvalidGridError")
}

// NewInvalidGridError は新しいInvalidGridErrorを作成し、スタックトレースを付与します。
func NewInvalidGridError(param, reason string) error {
	return errors.WithStack(&InvalidGridError{Param: param, Reason: reason})
}

// TrialFailedError は一つの (Configuration, Fold) 試行で学習・予測・スコア計算が
// 失敗した場合のエラーです。
type TrialFailedError struct {
	Config      string // Configuration のキー（例: "learning_rate=0.1"）
	ConfigIndex int    // 列挙順でのインデックス
	Fold        int
	Phase       string // "fit", "predict_proba", "score"
	Err         error
}

func (e *TrialFailedError) Error() string {
	return fmt.Sprintf("gridcv: trial failed for {%s} fold %d during %s: %v", e.Config, e.Fold, e.Phase, e.Err)
}

func (e *TrialFailedError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TrialFailedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("config", e.Config).
		Int("config_index", e.ConfigIndex).
		Int("fold", e.Fold).
		Str("phase", e.Phase).
		AnErr("cause", e.Err).
		Str("type", "TrialFailedError")
}

// NewTrialFailedError は新しいTrialFailedErrorを作成し、スタックトレースを付与します。
func NewTrialFailedError(config string, configIndex, fold int, phase string, err error) error {
	return errors.WithStack(&TrialFailedError{
		Config:      config,
		ConfigIndex: configIndex,
		Fold:        fold,
		Phase:       phase,
		Err:         err,
	})
}

// LabelClassMismatchError は正解ラベルのクラスが予測確率のクラス集合に存在しない場合のエラーです。
type LabelClassMismatchError struct {
	Row     int
	Label   int
	Classes []int
}

func (e *LabelClassMismatchError) Error() string {
	return fmt.Sprintf("gridcv: label %d at row %d is not in the predicted class set %v", e.Label, e.Row, e.Classes)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *LabelClassMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("row", e.Row).
		Int("label", e.Label).
		Ints("classes", e.Classes).
		Str("type", "LabelClassMismatchError")
}

// NewLabelClassMismatchError は新しいLabelClassMismatchErrorを作成し、スタックトレースを付与します。
func NewLabelClassMismatchError(row, label int, classes []int) error {
	return errors.WithStack(&LabelClassMismatchError{Row: row, Label: label, Classes: classes})
}

// SearchFailedError はグリッドサーチ全体が失敗した場合のエラーです。
// abort ポリシーでの試行失敗、キャンセル、有効な Configuration が存在しない場合に返されます。
type SearchFailedError struct {
	Policy string
	Reason string
	Err    error
}

func (e *SearchFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gridcv: search failed (policy=%s): %s", e.Policy, e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SearchFailedError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SearchFailedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("policy", e.Policy).
		Str("reason", e.Reason).
		AnErr("cause", e.Err).
		Str("type", "SearchFailedError")
}

// NewSearchFailedError は新しいSearchFailedErrorを作成し、スタックトレースを付与します。
func NewSearchFailedError(policy, reason string, err error) error {
	return errors.WithStack(&SearchFailedError{Policy: policy, Reason: reason, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	数値計算のエラー型
//
// ===========================================================================

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN、Inf などを検出します。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "log_loss", "gradient_update"）
	Values    []float64 // 問題のある値
	Iteration int       // 発生したイテレーション番号
}

func (e *NumericalInstabilityError) Error() string {
	var b strings.Builder
	for i, v := range e.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		if i >= 5 {
			b.WriteString("...")
			break
		}
		fmt.Fprintf(&b, "%.6g", v)
	}
	return fmt.Sprintf("gridcv: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, b.String())
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("iteration", e.Iteration).
		Floats64("values", e.Values).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrNoEligibleConfiguration は全ての Configuration が全 fold で失敗した場合のエラーです。
	ErrNoEligibleConfiguration = New("no configuration produced a valid fold score")
)
