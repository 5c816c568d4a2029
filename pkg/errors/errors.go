// Package errors はパイプライン全体のエラーハンドリングと警告システムを提供します。
// scikit-learnの警告・例外システムにインスパイアされており、構造化されたエラー情報を提供します。
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
		log.Printf("emigo-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
// これにより、DegenerateCandidateErrorなどの回復可能な警告の処理方法を制御できます。
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
// zerologが利用可能な場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	// zerologが設定されている場合は優先的に使用
	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	// フォールバック: 従来のハンドラ
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	パイプライン固有のエラー型
//
// ===========================================================================

// SchemaMismatchError は学習時と適用時のテーブルスキーマ（列集合・型）が
// 一致しない場合のエラーです。致命的であり、実行を中断します。
type SchemaMismatchError struct {
	Op       string
	Expected []string
	Missing  []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("emigo: %s: schema mismatch, missing columns [%s]",
		e.Op, strings.Join(e.Missing, ", "))
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Strs("expected_columns", e.Expected).
		Strs("missing_columns", e.Missing).
		Str("type", "SchemaMismatchError")
}

// NewSchemaMismatchError は新しいSchemaMismatchErrorを作成し、スタックトレースを付与します。
func NewSchemaMismatchError(op string, expected, missing []string) error {
	err := &SchemaMismatchError{Op: op, Expected: expected, Missing: missing}
	return errors.WithStack(err)
}

// ImputationIncompleteError は補完処理の後にも欠損値が残っている場合のエラーです。
// 欠損値を含むまま学習へ進むことを防ぐため、致命的として扱います。
type ImputationIncompleteError struct {
	Column  string
	Missing int
}

func (e *ImputationIncompleteError) Error() string {
	return fmt.Sprintf("emigo: imputation incomplete: column %q still has %d missing values",
		e.Column, e.Missing)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ImputationIncompleteError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Int("missing", e.Missing).
		Str("type", "ImputationIncompleteError")
}

// NewImputationIncompleteError は新しいImputationIncompleteErrorを作成し、スタックトレースを付与します。
func NewImputationIncompleteError(column string, missing int) error {
	err := &ImputationIncompleteError{Column: column, Missing: missing}
	return errors.WithStack(err)
}

// DegenerateCandidateError はハイパーパラメータ候補の評価が有効なモデルを
// 生成できなかった場合のエラーです。回復可能であり、探索全体は継続されます。
type DegenerateCandidateError struct {
	CandidateIndex int
	Fold           int
	Cause          error
}

func (e *DegenerateCandidateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("emigo: candidate %d degenerate at fold %d: %v",
			e.CandidateIndex, e.Fold, e.Cause)
	}
	return fmt.Sprintf("emigo: candidate %d degenerate at fold %d", e.CandidateIndex, e.Fold)
}

func (e *DegenerateCandidateError) Unwrap() error {
	return e.Cause
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DegenerateCandidateError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("candidate", e.CandidateIndex).
		Int("fold", e.Fold).
		AnErr("cause", e.Cause).
		Str("type", "DegenerateCandidateError")
}

// NewDegenerateCandidateError は新しいDegenerateCandidateErrorを作成し、スタックトレースを付与します。
func NewDegenerateCandidateError(candidate, fold int, cause error) error {
	err := &DegenerateCandidateError{CandidateIndex: candidate, Fold: fold, Cause: cause}
	return errors.WithStack(err)
}

// EmptyFoldError は分割またはフォールドが空（行数ゼロ）になった場合のエラーです。
// 設定の修正が必要なため、致命的として扱います。
type EmptyFoldError struct {
	Op   string
	Fold int
}

func (e *EmptyFoldError) Error() string {
	return fmt.Sprintf("emigo: %s: fold %d has zero rows", e.Op, e.Fold)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EmptyFoldError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("fold", e.Fold).
		Str("type", "EmptyFoldError")
}

// NewEmptyFoldError は新しいEmptyFoldErrorを作成し、スタックトレースを付与します。
func NewEmptyFoldError(op string, fold int) error {
	err := &EmptyFoldError{Op: op, Fold: fold}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通の構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("emigo: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
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
	return fmt.Sprintf("emigo: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
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
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
// `ValueError`よりも具体的なバリデーションロジックの失敗を示します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("emigo: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
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
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("emigo: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("emigo: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("emigo: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
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
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrNoCandidates は探索結果に有効な候補が一つも無い場合のエラーです。
	ErrNoCandidates = New("no usable candidates")

	// ErrSearchCancelled は探索が打ち切られた場合のエラーです。
	ErrSearchCancelled = New("search cancelled")
)
