package feed

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/newsroom/internal/fetcher"
)

// TextFetcher はURLの本文をテキストとして取得する。
// fetcher.Fetcherが実装する。
type TextFetcher interface {
	FetchText(ctx context.Context, rawURL, accept string) (string, error)
}

// ogImageSelectors はプレビュー画像を探すmetaタグの優先順位。
var ogImageSelectors = []string{
	`meta[property="og:image"]`,
	`meta[name="og:image"]`,
	`meta[property="twitter:image"]`,
	`meta[name="twitter:image"]`,
}

// ImageResolver は記事ページのOpen Graph/Twitter Cardメタデータからプレビュー画像URLを取得する。
type ImageResolver struct {
	fetcher TextFetcher
	logger  *slog.Logger
}

// NewImageResolver はImageResolverを生成する。
func NewImageResolver(f TextFetcher, logger *slog.Logger) *ImageResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageResolver{fetcher: f, logger: logger}
}

// ResolveOgImage はpageURLのHTMLから画像URLを返す。
// 取得失敗・該当タグなしの場合は空文字列を返し、エラーは返さない。
func (r *ImageResolver) ResolveOgImage(ctx context.Context, pageURL string) string {
	if pageURL == "" {
		return ""
	}

	page, err := r.fetcher.FetchText(ctx, pageURL, fetcher.AcceptHTML)
	if err != nil {
		r.logger.Warn("og:image取得: ページ取得失敗",
			slog.String("url", pageURL),
			slog.String("error", err.Error()),
		)
		return ""
	}

	return ExtractOgImage(page)
}

// ExtractOgImage はHTML文書から優先順位に従って最初の非空content属性を返す。
func ExtractOgImage(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}

	for _, sel := range ogImageSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr("content"); ok {
				found = strings.TrimSpace(v)
			}
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}
