// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はパイプライン境界で扱うエラー種別を表す。
type ErrorKind int

const (
	// KindUnknown は分類できないエラー（永続化層の障害など）を表す。
	KindUnknown ErrorKind = iota
	// KindFetch はネットワーク障害・タイムアウト・非2xxレスポンスを表す。
	KindFetch
	// KindParse はサニタイズ後もパースできないフィード文書を表す。
	KindParse
	// KindNotFound は参照先エンティティが存在しないことを表す。
	KindNotFound
)

// String はログ出力用の種別名を返す。
func (k ErrorKind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindParse:
		return "parse"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// KindOf はerrのチェーンからエラー種別を判定する。
func KindOf(err error) ErrorKind {
	var fetchErr *FetchError
	var parseErr *ParseError
	var notFoundErr *NotFoundError
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &notFoundErr):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// FetchError は外部URLの取得失敗を表す。
// StatusCodeが0の場合はネットワーク障害またはタイムアウトで、Errに原因を保持する。
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError はフィード文書のパース失敗を表す。
type ParseError struct {
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed: %v", e.Err)
}

// Unwrap は原因エラーを返す。
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NotFoundError は参照されたエンティティが存在しないことを表す。
type NotFoundError struct {
	Entity string
	ID     string
}

// Error はerrorインターフェースを実装する。
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ErrInvalidWebsite はディスカバリー対象のWebサイトが空の場合のエラー。
var ErrInvalidWebsite = errors.New("website is required")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, source, article, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidWebsite  = "INVALID_WEBSITE"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeSourceNotFound  = "SOURCE_NOT_FOUND"
	ErrCodeArticleNotFound = "ARTICLE_NOT_FOUND"
	ErrCodeDuplicateSource = "DUPLICATE_SOURCE"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewInvalidWebsiteError はディスカバリー対象が無効な場合のエラーを生成する。
func NewInvalidWebsiteError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWebsite,
		Message:  "Webサイトが指定されていません。",
		Category: "validation",
		Action:   "website に example.com または https://example.com の形式で指定してください。",
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの内容を確認してください。",
	}
}

// NewSourceNotFoundError はソース未検出エラーを生成する。
func NewSourceNotFoundError(sourceID string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceNotFound,
		Message:  fmt.Sprintf("指定されたソースが見つかりません: %s", sourceID),
		Category: "source",
		Action:   "ソースIDを確認してください。",
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(articleID string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", articleID),
		Category: "article",
		Action:   "記事IDを確認してください。",
	}
}

// NewDuplicateSourceError は同じURLのソースが既に登録済みの場合のエラーを生成する。
func NewDuplicateSourceError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSource,
		Message:  fmt.Sprintf("このURLのソースは既に登録されています: %s", url),
		Category: "source",
		Action:   "ソース一覧から該当ソースを確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
