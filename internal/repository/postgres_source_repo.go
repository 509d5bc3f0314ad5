package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsroom/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用したソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

// ListActive は有効なソースを登録順に取得する。
func (r *PostgresSourceRepo) ListActive(ctx context.Context) ([]*model.Source, error) {
	query, args, err := psql.
		Select("id", "name", "url", "type", "is_active", "created_at").
		From("sources").
		Where("is_active = TRUE").
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("クエリの構築に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("有効なソースの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		s := &model.Source{}
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.Type, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("ソースのスキャンに失敗しました: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// List は全ソースを記事数付きで新しい順に取得する。
func (r *PostgresSourceRepo) List(ctx context.Context) ([]model.SourceWithCount, error) {
	query, args, err := psql.
		Select("s.id", "s.name", "s.url", "s.type", "s.is_active", "s.created_at", "COUNT(a.id)").
		From("sources s").
		LeftJoin("articles a ON a.source_id = s.id").
		GroupBy("s.id").
		OrderBy("s.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("クエリの構築に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []model.SourceWithCount
	for rows.Next() {
		var s model.SourceWithCount
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.Type, &s.IsActive, &s.CreatedAt, &s.ArticleCount); err != nil {
			return nil, fmt.Errorf("ソースのスキャンに失敗しました: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// Create はソースを1件登録する。
func (r *PostgresSourceRepo) Create(ctx context.Context, source *model.Source) error {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, url, type, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		source.ID, source.Name, source.URL, source.Type, source.IsActive, source.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateSource
	}
	if err != nil {
		return fmt.Errorf("ソースの作成に失敗しました: %w", err)
	}
	return nil
}

// CreateMany はソースを同一トランザクションでまとめて登録する。
// 同一URLの行は ON CONFLICT DO NOTHING でスキップする。
func (r *PostgresSourceRepo) CreateMany(ctx context.Context, sources []model.NewSource) (int, error) {
	if len(sources) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	created := 0
	for _, s := range sources {
		// clock_timestamp() で行ごとに時刻を進め、バッチ内の順序を登録順として保つ
		res, err := tx.ExecContext(ctx,
			`INSERT INTO sources (id, name, url, type, is_active, created_at)
			 VALUES ($1, $2, $3, $4, $5, clock_timestamp())
			 ON CONFLICT (url) DO NOTHING`,
			uuid.New().String(), s.Name, s.URL, s.Type, s.IsActive,
		)
		if err != nil {
			return 0, fmt.Errorf("ソースの一括作成に失敗しました: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("作成件数の取得に失敗しました: %w", err)
		}
		created += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return created, nil
}

// SetActive はソースの有効フラグを更新し、更新後のソースを返す。
func (r *PostgresSourceRepo) SetActive(ctx context.Context, id string, active bool) (*model.Source, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &model.NotFoundError{Entity: "source", ID: id}
	}

	s := &model.Source{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE sources SET is_active = $2 WHERE id = $1
		 RETURNING id, name, url, type, is_active, created_at`,
		id, active,
	).Scan(&s.ID, &s.Name, &s.URL, &s.Type, &s.IsActive, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Entity: "source", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの更新に失敗しました: %w", err)
	}
	return s, nil
}

var _ SourceRepository = (*PostgresSourceRepo)(nil)
