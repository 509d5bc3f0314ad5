// Package feed はフィード文書のパース、og:image解決、フィードのディスカバリーを提供する。
package feed

import (
	"regexp"
	"strings"
)

// entityPrefix は既知のXMLエンティティ参照に先頭一致する。
var entityPrefix = regexp.MustCompile(`^&(?:amp|lt|gt|quot|apos|#\d+|#x[0-9A-Fa-f]+);`)

// SanitizeXML はエンティティ参照の一部でない & を &amp; に置き換える。
// 配信元がエスケープ漏れの & を含めてもXMLパースが中断しないようにする。
// 既にサニタイズ済みの文書に適用しても結果は変わらない。
func SanitizeXML(doc string) string {
	if !strings.Contains(doc, "&") {
		return doc
	}

	var b strings.Builder
	b.Grow(len(doc) + 64)

	for i := 0; i < len(doc); {
		j := strings.IndexByte(doc[i:], '&')
		if j < 0 {
			b.WriteString(doc[i:])
			break
		}
		b.WriteString(doc[i : i+j])
		i += j

		if ref := entityPrefix.FindString(doc[i:]); ref != "" {
			b.WriteString(ref)
			i += len(ref)
			continue
		}
		b.WriteString("&amp;")
		i++
	}

	return b.String()
}
