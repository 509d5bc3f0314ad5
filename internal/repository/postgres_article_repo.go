package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/hitoshi/newsroom/internal/model"
)

// articleColumns はarticlesテーブルのSELECT列。scanArticleの引数順と一致させる。
var articleColumns = []string{
	"id", "source_id", "url", "title", "summary", "image_url", "published_at", "created_at",
}

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner, extra ...any) (*model.Article, error) {
	a := &model.Article{}
	var summary, imageURL sql.NullString
	var publishedAt sql.NullTime

	dest := []any{&a.ID, &a.SourceID, &a.URL, &a.Title, &summary, &imageURL, &publishedAt, &a.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	a.Summary = stringPtr(summary)
	a.ImageURL = stringPtr(imageURL)
	a.PublishedAt = timePtr(publishedAt)
	return a, nil
}

// FindByURL はURLで記事を検索する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByURL(ctx context.Context, url string) (*model.Article, error) {
	query, args, err := psql.Select(articleColumns...).From("articles").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("クエリの構築に失敗しました: %w", err)
	}

	a, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("URLによる記事の検索に失敗しました: %w", err)
	}
	return a, nil
}

// Create は記事を登録する。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) error {
	if article.ID == "" {
		article.ID = uuid.New().String()
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, source_id, url, title, summary, image_url, published_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		article.ID, article.SourceID, article.URL, article.Title,
		nullStringPtr(article.Summary), nullStringPtr(article.ImageURL),
		nullTimePtr(article.PublishedAt), article.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateArticle
	}
	if err != nil {
		return fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	return nil
}

// FindMissingImage はimage_urlがNULLの記事を新しい順に取得する。
func (r *PostgresArticleRepo) FindMissingImage(ctx context.Context, limit int) ([]*model.Article, error) {
	if limit <= 0 {
		return nil, nil
	}

	query, args, err := psql.
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"image_url": nil}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("クエリの構築に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("画像未設定の記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("記事のスキャンに失敗しました: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// UpdateImage は記事のimage_urlを更新する。
func (r *PostgresArticleRepo) UpdateImage(ctx context.Context, id, imageURL string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &model.NotFoundError{Entity: "article", ID: id}
	}

	res, err := r.db.ExecContext(ctx, `UPDATE articles SET image_url = $2 WHERE id = $1`, id, imageURL)
	if err != nil {
		return fmt.Errorf("記事画像の更新に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if n == 0 {
		return &model.NotFoundError{Entity: "article", ID: id}
	}
	return nil
}

// List は記事をソース名付きで取得する。公開日時のない記事は末尾に並ぶ。
func (r *PostgresArticleRepo) List(ctx context.Context, q model.ArticleQuery) ([]model.ArticleWithSource, error) {
	cols := make([]string, 0, len(articleColumns)+1)
	for _, c := range articleColumns {
		cols = append(cols, "a."+c)
	}
	cols = append(cols, "s.name")

	b := psql.
		Select(cols...).
		From("articles a").
		Join("sources s ON s.id = a.source_id").
		OrderBy("a.published_at DESC NULLS LAST", "a.created_at DESC")
	if q.SourceID != "" {
		if _, err := uuid.Parse(q.SourceID); err != nil {
			return nil, nil
		}
		b = b.Where(sq.Eq{"a.source_id": q.SourceID})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("クエリの構築に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []model.ArticleWithSource
	for rows.Next() {
		var sourceName string
		a, err := scanArticle(rows, &sourceName)
		if err != nil {
			return nil, fmt.Errorf("記事のスキャンに失敗しました: %w", err)
		}
		articles = append(articles, model.ArticleWithSource{Article: *a, SourceName: sourceName})
	}
	return articles, rows.Err()
}

var _ ArticleRepository = (*PostgresArticleRepo)(nil)
