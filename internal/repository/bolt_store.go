package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/hitoshi/newsroom/internal/model"
)

const (
	sourceBucket     = "sources"
	sourceURLBucket  = "source_urls"
	articleBucket    = "articles"
	articleURLBucket = "article_urls"
)

// BoltStore はbbolt上にソースと記事を保存する組み込みストア。
// URLインデックス用のバケットで、PostgreSQLの一意制約と同じ重複排除を行う。
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

type boltSource struct {
	Seq       uint64    `json:"seq"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Type      string    `json:"type"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type boltArticle struct {
	Seq         uint64     `json:"seq"`
	ID          string     `json:"id"`
	SourceID    string     `json:"source_id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Summary     *string    `json:"summary,omitempty"`
	ImageURL    *string    `json:"image_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OpenBoltStore はpathのbboltファイルを開き、必要なバケットを作成する。
func OpenBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{sourceBucket, sourceURLBucket, articleBucket, articleURLBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close はbboltファイルを閉じる。
func (b *BoltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// PingContext はストアが利用可能かを確認する。
func (b *BoltStore) PingContext(_ context.Context) error {
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(sourceBucket)) == nil {
			return errors.New("source bucket missing")
		}
		return nil
	})
}

// ListActive は有効なソースを登録順に取得する。
func (b *BoltStore) ListActive(_ context.Context) ([]*model.Source, error) {
	var records []boltSource
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sourceBucket)).ForEach(func(_, v []byte) error {
			var rec boltSource
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.IsActive {
				records = append(records, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	sources := make([]*model.Source, 0, len(records))
	for _, rec := range records {
		sources = append(sources, rec.toModel())
	}
	return sources, nil
}

// List は全ソースを記事数付きで新しい順に取得する。
func (b *BoltStore) List(_ context.Context) ([]model.SourceWithCount, error) {
	var records []boltSource
	counts := make(map[string]int)
	err := b.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(sourceBucket)).ForEach(func(_, v []byte) error {
			var rec boltSource
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket([]byte(articleBucket)).ForEach(func(_, v []byte) error {
			var rec boltArticle
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			counts[rec.SourceID]++
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Seq > records[j].Seq })

	out := make([]model.SourceWithCount, 0, len(records))
	for _, rec := range records {
		out = append(out, model.SourceWithCount{Source: *rec.toModel(), ArticleCount: counts[rec.ID]})
	}
	return out, nil
}

// Create はソースを1件登録する。
func (b *BoltStore) Create(_ context.Context, source *model.Source) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		ok, err := b.putSource(tx, source)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDuplicateSource
		}
		return nil
	})
}

// CreateMany はソースを1トランザクションで登録し、登録件数を返す。
func (b *BoltStore) CreateMany(_ context.Context, sources []model.NewSource) (int, error) {
	created := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		created = 0
		for _, ns := range sources {
			s := &model.Source{Name: ns.Name, URL: ns.URL, Type: ns.Type, IsActive: ns.IsActive}
			ok, err := b.putSource(tx, s)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("create sources: %w", err)
	}
	return created, nil
}

// putSource はURLが未登録の場合のみソースを保存し、保存したかどうかを返す。
func (b *BoltStore) putSource(tx *bolt.Tx, s *model.Source) (bool, error) {
	urls := tx.Bucket([]byte(sourceURLBucket))
	if urls.Get([]byte(s.URL)) != nil {
		return false, nil
	}

	bucket := tx.Bucket([]byte(sourceBucket))
	seq, err := bucket.NextSequence()
	if err != nil {
		return false, err
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = b.now()
	}

	rec := boltSource{
		Seq: seq, ID: s.ID, Name: s.Name, URL: s.URL, Type: s.Type,
		IsActive: s.IsActive, CreatedAt: s.CreatedAt,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	if err := bucket.Put([]byte(s.ID), data); err != nil {
		return false, err
	}
	return true, urls.Put([]byte(s.URL), []byte(s.ID))
}

// SetActive はソースの有効フラグを更新する。
func (b *BoltStore) SetActive(_ context.Context, id string, active bool) (*model.Source, error) {
	var updated *model.Source
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sourceBucket))
		v := bucket.Get([]byte(id))
		if v == nil {
			return &model.NotFoundError{Entity: "source", ID: id}
		}
		var rec boltSource
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		rec.IsActive = active
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		updated = rec.toModel()
		return bucket.Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FindByURL はURLで記事を検索する。見つからない場合はnilを返す。
func (b *BoltStore) FindByURL(_ context.Context, url string) (*model.Article, error) {
	var found *model.Article
	err := b.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(articleURLBucket)).Get([]byte(url))
		if id == nil {
			return nil
		}
		rec, err := getArticle(tx, id)
		if err != nil || rec == nil {
			return err
		}
		found = rec.toModel()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find article by url: %w", err)
	}
	return found, nil
}

// CreateArticle は記事を登録する。同一URLが存在する場合はErrDuplicateArticleを返す。
func (b *BoltStore) CreateArticle(_ context.Context, article *model.Article) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		urls := tx.Bucket([]byte(articleURLBucket))
		if urls.Get([]byte(article.URL)) != nil {
			return ErrDuplicateArticle
		}

		bucket := tx.Bucket([]byte(articleBucket))
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		if article.ID == "" {
			article.ID = uuid.New().String()
		}
		if article.CreatedAt.IsZero() {
			article.CreatedAt = b.now()
		}

		data, err := json.Marshal(boltArticle{
			Seq: seq, ID: article.ID, SourceID: article.SourceID, URL: article.URL,
			Title: article.Title, Summary: article.Summary, ImageURL: article.ImageURL,
			PublishedAt: article.PublishedAt, CreatedAt: article.CreatedAt,
		})
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(article.ID), data); err != nil {
			return err
		}
		return urls.Put([]byte(article.URL), []byte(article.ID))
	})
}

// FindMissingImage は画像未設定の記事を作成日時の新しい順に取得する。
func (b *BoltStore) FindMissingImage(_ context.Context, limit int) ([]*model.Article, error) {
	if limit <= 0 {
		return nil, nil
	}

	var records []boltArticle
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(articleBucket)).ForEach(func(_, v []byte) error {
			var rec boltArticle
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.ImageURL == nil {
				records = append(records, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find articles missing image: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].Seq > records[j].Seq
	})
	if len(records) > limit {
		records = records[:limit]
	}

	articles := make([]*model.Article, 0, len(records))
	for _, rec := range records {
		articles = append(articles, rec.toModel())
	}
	return articles, nil
}

// UpdateImage は記事の画像URLを更新する。
func (b *BoltStore) UpdateImage(_ context.Context, id, imageURL string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		rec, err := getArticle(tx, []byte(id))
		if err != nil {
			return err
		}
		if rec == nil {
			return &model.NotFoundError{Entity: "article", ID: id}
		}
		rec.ImageURL = &imageURL
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(articleBucket)).Put([]byte(id), data)
	})
}

// ListArticles は記事をソース名付きで公開日時の新しい順に取得する。
func (b *BoltStore) ListArticles(_ context.Context, q model.ArticleQuery) ([]model.ArticleWithSource, error) {
	var records []boltArticle
	names := make(map[string]string)
	err := b.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(sourceBucket)).ForEach(func(_, v []byte) error {
			var rec boltSource
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			names[rec.ID] = rec.Name
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket([]byte(articleBucket)).ForEach(func(_, v []byte) error {
			var rec boltArticle
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if q.SourceID == "" || rec.SourceID == q.SourceID {
				records = append(records, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		pi, pj := records[i].PublishedAt, records[j].PublishedAt
		switch {
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		case pi != nil && pj != nil && !pi.Equal(*pj):
			return pi.After(*pj)
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if q.Limit > 0 && len(records) > q.Limit {
		records = records[:q.Limit]
	}

	out := make([]model.ArticleWithSource, 0, len(records))
	for _, rec := range records {
		out = append(out, model.ArticleWithSource{Article: *rec.toModel(), SourceName: names[rec.SourceID]})
	}
	return out, nil
}

func getArticle(tx *bolt.Tx, id []byte) (*boltArticle, error) {
	v := tx.Bucket([]byte(articleBucket)).Get(id)
	if v == nil {
		return nil, nil
	}
	var rec boltArticle
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (rec boltSource) toModel() *model.Source {
	return &model.Source{
		ID: rec.ID, Name: rec.Name, URL: rec.URL, Type: rec.Type,
		IsActive: rec.IsActive, CreatedAt: rec.CreatedAt,
	}
}

func (rec boltArticle) toModel() *model.Article {
	return &model.Article{
		ID: rec.ID, SourceID: rec.SourceID, URL: rec.URL, Title: rec.Title,
		Summary: rec.Summary, ImageURL: rec.ImageURL, PublishedAt: rec.PublishedAt,
		CreatedAt: rec.CreatedAt,
	}
}

// Sources はBoltStoreをSourceRepositoryとして公開する。
func (b *BoltStore) Sources() SourceRepository {
	return b
}

// Articles はBoltStoreをArticleRepositoryとして公開する。
func (b *BoltStore) Articles() ArticleRepository {
	return boltArticles{b}
}

// boltArticles はBoltStoreの記事操作をArticleRepositoryとして公開する。
// Create/ListはSourceRepository側のメソッド名と重なるため、この型で記事用に差し替える。
type boltArticles struct {
	*BoltStore
}

func (a boltArticles) Create(ctx context.Context, article *model.Article) error {
	return a.CreateArticle(ctx, article)
}

func (a boltArticles) List(ctx context.Context, q model.ArticleQuery) ([]model.ArticleWithSource, error) {
	return a.ListArticles(ctx, q)
}

var (
	_ SourceRepository  = (*BoltStore)(nil)
	_ ArticleRepository = boltArticles{}
)
