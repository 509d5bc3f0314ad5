// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/newsroom/internal/model"
)

// ErrDuplicateArticle は同一URLの記事が既に存在する場合にCreateが返すエラー。
var ErrDuplicateArticle = errors.New("article with the same url already exists")

// ErrDuplicateSource は同一URLのソースが既に存在する場合にCreateが返すエラー。
var ErrDuplicateSource = errors.New("source with the same url already exists")

// SourceRepository はソースレジストリの永続化インターフェース。
type SourceRepository interface {
	// ListActive は有効なソースを登録順に取得する。
	ListActive(ctx context.Context) ([]*model.Source, error)

	// List は全ソースを記事数付きで新しい順に取得する。
	List(ctx context.Context) ([]model.SourceWithCount, error)

	// Create はソースを1件登録する。同一URLが存在する場合はErrDuplicateSourceを返す。
	Create(ctx context.Context, source *model.Source) error

	// CreateMany はソースをまとめて登録し、実際に登録された件数を返す。
	// 同一URLのソースは既存・バッチ内を問わずスキップする。
	CreateMany(ctx context.Context, sources []model.NewSource) (int, error)

	// SetActive はソースの有効フラグを更新する。見つからない場合は*model.NotFoundErrorを返す。
	SetActive(ctx context.Context, id string, active bool) (*model.Source, error)
}

// ArticleRepository は記事の永続化インターフェース。
type ArticleRepository interface {
	// FindByURL はURLで記事を検索する。見つからない場合はnilを返す。
	FindByURL(ctx context.Context, url string) (*model.Article, error)

	// Create は記事を登録する。IDとCreatedAtが未設定の場合は補完する。
	// URLの一意制約に違反した場合はErrDuplicateArticleを返す。
	Create(ctx context.Context, article *model.Article) error

	// FindMissingImage はプレビュー画像が未設定の記事を作成日時の新しい順に最大limit件取得する。
	FindMissingImage(ctx context.Context, limit int) ([]*model.Article, error)

	// UpdateImage は記事のプレビュー画像URLを更新する。見つからない場合は*model.NotFoundErrorを返す。
	UpdateImage(ctx context.Context, id, imageURL string) error

	// List は記事をソース名付きで公開日時の新しい順に取得する。
	List(ctx context.Context, q model.ArticleQuery) ([]model.ArticleWithSource, error)
}
