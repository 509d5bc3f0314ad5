package feed

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/hitoshi/newsroom/internal/model"
)

// SnippetMaker はHTML本文からプレーンテキストの要約を作る。
type SnippetMaker interface {
	Snippet(rawHTML string) string
}

// Parser はRSS/Atom/RDF文書をFeedItemの列に変換する。
type Parser struct {
	snippets SnippetMaker
}

// NewParser はParserを生成する。
func NewParser(snippets SnippetMaker) *Parser {
	return &Parser{snippets: snippets}
}

// Parse はdocをサニタイズしてからパースし、文書順の記事データを返す。
// サニタイズ後もパースできない場合は*model.ParseErrorを返す。
func (p *Parser) Parse(doc string) ([]model.FeedItem, error) {
	// gofeed.Parserはゴルーチン安全ではないため呼び出しごとに生成する
	parsed, err := gofeed.NewParser().ParseString(SanitizeXML(doc))
	if err != nil {
		return nil, &model.ParseError{Err: err}
	}

	items := make([]model.FeedItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		items = append(items, p.convertItem(it))
	}
	return items, nil
}

func (p *Parser) convertItem(it *gofeed.Item) model.FeedItem {
	return model.FeedItem{
		Link:        strings.TrimSpace(it.Link),
		Title:       strings.TrimSpace(it.Title),
		Summary:     p.summary(it),
		PublishedAt: publishedAt(it),
		ImageHint:   imageHint(it),
	}
}

// summary は要約テキスト、summary/description、content の順で最初の非空値を返す。
func (p *Parser) summary(it *gofeed.Item) *string {
	body := it.Content
	if strings.TrimSpace(body) == "" {
		body = it.Description
	}

	var snippet string
	if p.snippets != nil {
		snippet = p.snippets.Snippet(body)
	}

	for _, v := range []string{snippet, it.Description, it.Content} {
		if strings.TrimSpace(v) != "" {
			return &v
		}
	}
	return nil
}

func publishedAt(it *gofeed.Item) *time.Time {
	for _, t := range []*time.Time{it.PublishedParsed, it.UpdatedParsed} {
		if t != nil && !t.IsZero() {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// imageHint はenclosure、media:content、media:thumbnail の順で画像URLを探す。
func imageHint(it *gofeed.Item) *string {
	for _, enc := range it.Enclosures {
		if enc == nil {
			continue
		}
		if u := strings.TrimSpace(enc.URL); u != "" {
			return &u
		}
	}
	for _, name := range []string{"content", "thumbnail"} {
		if u := mediaURL(it.Extensions, name); u != "" {
			return &u
		}
	}
	return nil
}

// mediaURL はMedia RSS拡張の要素nameのurl属性を返す。media:group配下も対象とする。
func mediaURL(exts ext.Extensions, name string) string {
	media, ok := exts["media"]
	if !ok {
		return ""
	}
	for _, e := range media[name] {
		if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
			return u
		}
	}
	for _, group := range media["group"] {
		for _, e := range group.Children[name] {
			if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
				return u
			}
		}
	}
	return ""
}
