package models

import (
	"errors"
	"fmt"
)

// APIエラーコード
const (
	ErrCodeInvalidFilters     = "INVALID_FILTERS"
	ErrCodeMissingInput       = "MISSING_INPUT"
	ErrCodeNoData             = "NO_DATA"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
)

// ErrNoData はフォールバックを尽くしても対象行が0件だったことを示します。
var ErrNoData = errors.New("조건에 맞는 데이터가 없습니다.")

// ErrMissingInput question も filters も指定されていない
var ErrMissingInput = errors.New("question 또는 filters 중 하나가 필요합니다.")

// ErrDatasetNotLoaded データセットが未ロード
var ErrDatasetNotLoaded = errors.New("データセットが読み込まれていません")

// ParseError 期間トークンの解析失敗
type ParseError struct {
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("期間トークンを解析できません: %q", e.Token)
}

// EncodingError 候補エンコーディングのどれでもデコードできなかった
type EncodingError struct {
	Path      string
	Encodings []string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("ファイルのエンコーディングを判定できません: %s (試行: %v)", e.Path, e.Encodings)
}

// SchemaValidationError フィルタのスキーマ検証エラー
type SchemaValidationError struct {
	Message string
	Err     error
}

func (e *SchemaValidationError) Error() string {
	return "필터 스키마 오류: " + e.Message
}

func (e *SchemaValidationError) Unwrap() error {
	return e.Err
}

// DependencyError テキスト補完依存の呼び出し失敗
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
