// Package errors はgbdata全体のエラーハンドリングと警告システムを提供します。
// データ行列の入出力で発生する失敗を、呼び出し側が errors.As で判別できる
// 構造化されたエラー型として表現します。
package errors

import (
	"fmt"
	"log"
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
		log.Printf("gbdata-Warning: %v\n", w)
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

// DataWarning はデータが処理可能だが疑わしい場合の警告です。
// 例えば、binary:logistic のラベルが [0,1] の範囲外にある場合など。
type DataWarning struct {
	Op     string
	Reason string
}

func (w *DataWarning) Error() string {
	return fmt.Sprintf("%s: %s", w.Op, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Op).
		Str("reason", w.Reason).
		Str("type", "DataWarning")
}

// NewDataWarning は新しいDataWarningを作成します。
func NewDataWarning(op, reason string) *DataWarning {
	return &DataWarning{Op: op, Reason: reason}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、行数0の行列に対してRMSEを計算しようとした場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	データ行列の入出力エラー
//
// ===========================================================================

// IOError はファイルを開けない、読み書きできない場合のエラーです。
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("gbdata: %s: io failure: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gbdata: %s: io failure on %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *IOError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		AnErr("cause", e.Err).
		Str("type", "IOError")
}

// NewIOError は新しいIOErrorを作成し、スタックトレースを付与します。
func NewIOError(op, path string, err error) error {
	return errors.WithStack(&IOError{Op: op, Path: path, Err: err})
}

// FormatError はテキスト行、またはバイナリヘッダが不正な場合のエラーです。
// Line が0の場合はバイナリストリームを意味します。
type FormatError struct {
	Op     string
	Line   int
	Column int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("gbdata: %s: malformed input: %s", e.Op, e.Reason)
	}
	if e.Column == 0 {
		return fmt.Sprintf("gbdata: %s: malformed line %d: %s", e.Op, e.Line, e.Reason)
	}
	return fmt.Sprintf("gbdata: %s: malformed line %d, token %d: %s", e.Op, e.Line, e.Column, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *FormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("line", e.Line).
		Int("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "FormatError")
}

// NewFormatError は新しいFormatErrorを作成し、スタックトレースを付与します。
func NewFormatError(op string, line, column int, reason string) error {
	return errors.WithStack(&FormatError{Op: op, Line: line, Column: column, Reason: reason})
}

// NewFormatErrorf はフォーマット済みの理由でFormatErrorを作成します。
func NewFormatErrorf(op string, line, column int, format string, args ...interface{}) error {
	return NewFormatError(op, line, column, fmt.Sprintf(format, args...))
}

// ShapeError は宣言された長さと実際の長さが一致しない場合のエラーです。
// ラベル・重みの長さと行数の不一致もこれに含まれます。
type ShapeError struct {
	Op       string
	What     string
	Expected int
	Got      int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("gbdata: %s: %s has length %d, expected %d", e.Op, e.What, e.Got, e.Expected)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("what", e.What).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("type", "ShapeError")
}

// NewShapeError は新しいShapeErrorを作成し、スタックトレースを付与します。
func NewShapeError(op, what string, expected, got int) error {
	return errors.WithStack(&ShapeError{Op: op, What: what, Expected: expected, Got: got})
}

// OrderError はインデックス列が単調でない場合のエラーです。
// Index は違反が見つかった位置（行ヘッダなら境界番号、列なら非ゼロ要素の位置）です。
type OrderError struct {
	Op     string
	What   string
	Index  int
	Reason string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("gbdata: %s: %s out of order at %d: %s", e.Op, e.What, e.Index, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *OrderError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("what", e.What).
		Int("index", e.Index).
		Str("reason", e.Reason).
		Str("type", "OrderError")
}

// NewOrderError は新しいOrderErrorを作成し、スタックトレースを付与します。
func NewOrderError(op, what string, index int, reason string) error {
	return errors.WithStack(&OrderError{Op: op, What: what, Index: index, Reason: reason})
}

// TruncatedError はバイナリストリームがヘッダで宣言された長さより短い場合のエラーです。
type TruncatedError struct {
	Op       string
	Expected int64 // 宣言されたバイト数
	Got      int64 // 実際に利用可能だったバイト数
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("gbdata: %s: stream truncated: need %d bytes, got %d", e.Op, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TruncatedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int64("expected_bytes", e.Expected).
		Int64("got_bytes", e.Got).
		Str("type", "TruncatedError")
}

// NewTruncatedError は新しいTruncatedErrorを作成し、スタックトレースを付与します。
func NewTruncatedError(op string, expected, got int64) error {
	return errors.WithStack(&TruncatedError{Op: op, Expected: expected, Got: got})
}

// ===========================================================================
//
//	モデル関連のエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("gbdata: %s: this model is not trained yet. Call Train() before using %s()", e.ModelName, e.Method)
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
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("gbdata: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
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
	return fmt.Sprintf("gbdata: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
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
	return fmt.Sprintf("gbdata: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError はモデルの保存・読み込み・学習に関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gbdata: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("gbdata: %s: %s", e.Op, e.Kind)
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

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// 勾配やヘッセ行列に NaN や Inf が現れた場合に使用します。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "gradient", "leaf_weight"）
	Values    []float64 // 問題のある値
	Iteration int       // 発生したイテレーション番号
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("gbdata: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
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

	// ErrStopTraining はコールバックが学習を打ち切る場合に返すエラーです。
	ErrStopTraining = New("stop training")
)
