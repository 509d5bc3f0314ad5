package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// SnippetSanitizer はフィード本文のHTMLからプレーンテキストの要約を作る。
// bluemondayのStrictPolicyで全タグを除去し、エンティティを戻して空白を詰める。
type SnippetSanitizer struct {
	policy *bluemonday.Policy
}

// NewSnippetSanitizer はSnippetSanitizerを生成する。
func NewSnippetSanitizer() *SnippetSanitizer {
	return &SnippetSanitizer{policy: bluemonday.StrictPolicy()}
}

// Snippet はrawHTMLのテキスト部分を1行に整形して返す。
// 同一入力に対して常に同一出力を返す。
func (s *SnippetSanitizer) Snippet(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}
	// ブロック要素の境界で単語が連結しないよう、タグを空白に置き換えてから除去する
	text := s.policy.Sanitize(strings.ReplaceAll(rawHTML, "<", " <"))
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}
