package model

import "time"

// Article はソースから取り込んだ記事を表す。
// URLは重複排除に使う唯一の外部識別子。
type Article struct {
	ID          string
	SourceID    string
	URL         string
	Title       string
	Summary     *string
	ImageURL    *string
	PublishedAt *time.Time
	CreatedAt   time.Time
}

// ArticleWithSource は記事とソース名を結合したモデル。
type ArticleWithSource struct {
	Article
	SourceName string
}

// ArticleQuery は記事一覧の取得条件。
// SourceIDが空の場合は全ソースを対象とする。
type ArticleQuery struct {
	SourceID string
	Limit    int
}

// FeedItem はフィードパーサーから取得した未保存の記事データを表す。
type FeedItem struct {
	Link        string
	Title       string
	Summary     *string
	PublishedAt *time.Time
	ImageHint   *string
}

// FetchOutcome はソース単位のインジェスト結果。
// Errorがtrueの場合は失敗レコードで、Messageに原因を保持する。
type FetchOutcome struct {
	Source   string `json:"source"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed,omitempty"`
	Error    bool   `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

// BackfillResult は画像バックフィルの集計結果。
type BackfillResult struct {
	Checked int `json:"checked"`
	Filled  int `json:"filled"`
	Skipped int `json:"skipped"`
}
