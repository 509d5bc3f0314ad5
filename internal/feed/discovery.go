package feed

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/newsroom/internal/model"
)

// AcceptDiscovery はディスカバリーの取得で使うAcceptヘッダー。
const AcceptDiscovery = "text/html,application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.8"

// conventionalFeedPaths は多くのサイトがフィードを公開している慣習的なパス。
var conventionalFeedPaths = []string{"/rss", "/rss.xml", "/feed", "/feed.xml", "/atom.xml"}

// sniffLength はフィード判定で検査する先頭文字数。
const sniffLength = 2000

// feedMarkers は先頭部分に含まれていればフィードとみなすタグ。
var feedMarkers = []string{"<rss", "<feed", "<rdf:rdf"}

// Discoverer はWebサイトのフィードURLを推測・検出し、実際に取得して検証する。
type Discoverer struct {
	fetcher TextFetcher
	logger  *slog.Logger
}

// NewDiscoverer はDiscovererを生成する。
func NewDiscoverer(f TextFetcher, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{fetcher: f, logger: logger}
}

// NormalizeWebsite はスキームがなければhttps://を補い、末尾のスラッシュを除去する。
// 空白のみの入力には空文字列を返す。
func NormalizeWebsite(website string) string {
	w := strings.TrimSpace(website)
	if w == "" {
		return ""
	}
	lower := strings.ToLower(w)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		w = "https://" + w
	}
	return strings.TrimRight(w, "/")
}

// HostOf はURLのホスト部（ポート付き）を返す。パースできない場合は入力をそのまま返す。
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// Discover はwebsiteのフィード候補を集め、フィードとして取得できたものだけを返す。
// 候補の順序は 慣習パス → ホームページのlinkタグ で、検証順に返す。
// 個々の候補の取得失敗は候補の除外として扱い、エラーにはしない。
func (d *Discoverer) Discover(ctx context.Context, website string) ([]model.FeedCandidate, error) {
	site := NormalizeWebsite(website)
	if site == "" {
		return nil, model.ErrInvalidWebsite
	}

	set := newCandidateSet()
	host := HostOf(site)
	for _, p := range conventionalFeedPaths {
		set.add(site+p, host+" ("+p+")")
	}

	homepage, err := d.fetcher.FetchText(ctx, site, AcceptDiscovery)
	if err != nil {
		d.logger.Info("ディスカバリー: ホームページ取得失敗",
			slog.String("website", site),
			slog.String("error", err.Error()),
		)
	} else {
		for _, c := range ParseFeedLinksFromHTML(homepage, site) {
			set.add(c.URL, c.Title)
		}
	}

	verified := newCandidateSet()
	for _, c := range set.list() {
		if d.looksLikeFeed(ctx, c.URL) {
			verified.add(c.URL, c.Title)
		}
	}

	return verified.list(), nil
}

// looksLikeFeed は候補URLを取得し、先頭部分にフィードのルート要素が含まれるかを判定する。
func (d *Discoverer) looksLikeFeed(ctx context.Context, candidateURL string) bool {
	body, err := d.fetcher.FetchText(ctx, candidateURL, AcceptDiscovery)
	if err != nil {
		d.logger.Debug("ディスカバリー: 候補の取得失敗",
			slog.String("url", candidateURL),
			slog.String("error", err.Error()),
		)
		return false
	}
	return LooksLikeFeed(body)
}

// LooksLikeFeed は文書の先頭2000文字を小文字化して<rss、<feed、<rdf:rdfのいずれかを含むか判定する。
func LooksLikeFeed(body string) bool {
	head := body
	n := 0
	for i := range body {
		if n == sniffLength {
			head = body[:i]
			break
		}
		n++
	}
	head = strings.ToLower(head)
	for _, m := range feedMarkers {
		if strings.Contains(head, m) {
			return true
		}
	}
	return false
}

// ParseFeedLinksFromHTML はHTML中のlinkタグからフィード候補を抽出する。
// relに"alternate"を含み、typeに"rss"、"atom"、"xml"のいずれかを含むタグが対象。
// hrefはbaseURLを基準に絶対URLへ解決される。
func ParseFeedLinksFromHTML(body, baseURL string) []model.FeedCandidate {
	var candidates []model.FeedCandidate

	base, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(strings.NewReader(body))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			if string(tn) != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href, title string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = strings.TrimSpace(string(val))
				case "title":
					title = strings.TrimSpace(string(val))
				}
				if !more {
					break
				}
			}

			if !strings.Contains(rel, "alternate") || !isFeedLinkType(linkType) || href == "" {
				continue
			}

			resolved := resolveURL(base, href)
			if resolved == "" {
				continue
			}
			candidates = append(candidates, model.FeedCandidate{URL: resolved, Title: title})
		}
	}
}

func isFeedLinkType(linkType string) bool {
	return strings.Contains(linkType, "rss") ||
		strings.Contains(linkType, "atom") ||
		strings.Contains(linkType, "xml")
}

func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// candidateSet はURLで重複排除する順序付き集合。
// 同じURLが再度追加された場合、位置は最初の追加時のまま、空でないタイトルで上書きする。
type candidateSet struct {
	index map[string]int
	items []model.FeedCandidate
}

func newCandidateSet() *candidateSet {
	return &candidateSet{index: make(map[string]int)}
}

func (s *candidateSet) add(rawURL, title string) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return
	}
	if i, ok := s.index[u]; ok {
		if title != "" {
			s.items[i].Title = title
		}
		return
	}
	s.index[u] = len(s.items)
	s.items = append(s.items, model.FeedCandidate{URL: u, Title: title})
}

func (s *candidateSet) list() []model.FeedCandidate {
	out := make([]model.FeedCandidate, len(s.items))
	copy(out, s.items)
	return out
}
