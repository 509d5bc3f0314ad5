// Package fetcher は外部URLからテキスト文書を取得する。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hitoshi/newsroom/internal/model"
	"github.com/hitoshi/newsroom/internal/security"
)

const (
	// DefaultUserAgent は配信元のBot判定を避けるためのブラウザUA。
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// AcceptFeed はフィード文書取得時のAcceptヘッダー。
	AcceptFeed = "application/rss+xml, application/xml;q=0.9, */*;q=0.8"
	// AcceptHTML はWebページ取得時のAcceptヘッダー。
	AcceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	acceptLanguage = "en-US,en;q=0.9,tr;q=0.8"

	// DefaultTimeout はフィード取得のリクエストタイムアウト。
	DefaultTimeout = 20 * time.Second
	// DefaultMaxBodySize はレスポンスボディの上限（5MB）。
	DefaultMaxBodySize int64 = 5 * 1024 * 1024
)

// ErrBodyTooLarge はレスポンスボディが上限を超えた場合のエラー。
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// Config はFetcherの設定。ゼロ値の項目はデフォルト値で補われる。
type Config struct {
	Timeout     time.Duration
	MaxBodySize int64
	UserAgent   string
}

// Fetcher はGETリクエストで文書をテキストとして取得する。
// リダイレクトは下位のhttp.Clientが追従し、リトライは行わない。
type Fetcher struct {
	client      *resty.Client
	guard       security.Guard
	maxBodySize int64
}

// New はguardが生成するHTTPクライアントを下位トランスポートとしてFetcherを生成する。
func New(guard security.Guard, cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	client := resty.NewWithClient(guard.NewClient(cfg.Timeout))
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept-Language", acceptLanguage)

	return &Fetcher{
		client:      client,
		guard:       guard,
		maxBodySize: cfg.MaxBodySize,
	}
}

// FetchText はrawURLをacceptヘッダー付きで取得し、本文を返す。
// 非2xxレスポンスはStatusCode付きの、通信失敗は原因付きの*model.FetchErrorを返す。
func (f *Fetcher) FetchText(ctx context.Context, rawURL, accept string) (string, error) {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		return "", &model.FetchError{URL: rawURL, Err: err}
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if resp != nil && resp.RawBody() != nil {
		defer resp.RawBody().Close()
	}
	if err != nil {
		return "", &model.FetchError{URL: rawURL, Err: err}
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", &model.FetchError{URL: rawURL, StatusCode: resp.StatusCode()}
	}

	data, err := io.ReadAll(io.LimitReader(resp.RawBody(), f.maxBodySize+1))
	if err != nil {
		return "", &model.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > f.maxBodySize {
		return "", &model.FetchError{URL: rawURL, Err: ErrBodyTooLarge}
	}

	return string(data), nil
}
