package model

import "time"

// SourceTypeFeed はディスカバリーで登録されるソースの種別タグ。
const SourceTypeFeed = "feed"

// Source はインジェスト対象として登録されたフィードエンドポイントを表す。
type Source struct {
	ID        string
	Name      string
	URL       string
	Type      string
	IsActive  bool
	CreatedAt time.Time
}

// SourceWithCount はソースと紐づく記事数を結合したモデル。
type SourceWithCount struct {
	Source
	ArticleCount int
}

// NewSource はソース登録バッチの1要素を表す。
// 同一URLのソースが既に存在する場合は登録がスキップされる。
type NewSource struct {
	Name     string
	Type     string
	URL      string
	IsActive bool
}

// FeedCandidate はディスカバリーで得られたフィードURL候補。
// Titleが空の場合はタイトルなしを表す。
type FeedCandidate struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// DiscoveryResult はディスカバリーと登録の結果を表す。
type DiscoveryResult struct {
	Website string          `json:"website"`
	OK      bool            `json:"ok"`
	Created int             `json:"created"`
	Feeds   []FeedCandidate `json:"feeds"`
	Message string          `json:"message,omitempty"`
}
