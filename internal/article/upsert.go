// Package article は取り込んだフィード項目を記事として登録する処理を提供する。
package article

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/newsroom/internal/model"
	"github.com/hitoshi/newsroom/internal/repository"
)

// InsertStats は1ソース分の記事登録結果。
type InsertStats struct {
	Inserted int
	Skipped  int
	Failed   int
}

// UpsertService は記事URLによる重複判定と新規登録を行う。
// 既存記事の更新は行わない。
type UpsertService struct {
	articles repository.ArticleRepository
	logger   *slog.Logger
}

// NewUpsertService はUpsertServiceを生成する。
func NewUpsertService(articles repository.ArticleRepository, logger *slog.Logger) *UpsertService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpsertService{articles: articles, logger: logger}
}

// InsertItems はフィード項目を順に登録する。
// リンクまたはタイトルが空の項目、既に同じURLの記事が存在する項目はスキップする。
// 項目単位の失敗はFailedに数え、後続の項目の処理を続ける。
func (s *UpsertService) InsertItems(ctx context.Context, sourceID string, items []model.FeedItem) InsertStats {
	var stats InsertStats

	for _, item := range items {
		if item.Link == "" || item.Title == "" {
			stats.Skipped++
			continue
		}

		existing, err := s.articles.FindByURL(ctx, item.Link)
		if err != nil {
			s.logger.Error("記事の存在確認に失敗",
				slog.String("source_id", sourceID),
				slog.String("url", item.Link),
				slog.Any("error", err),
			)
			stats.Failed++
			continue
		}
		if existing != nil {
			stats.Skipped++
			continue
		}

		a := &model.Article{
			SourceID:    sourceID,
			URL:         item.Link,
			Title:       item.Title,
			Summary:     item.Summary,
			ImageURL:    item.ImageHint,
			PublishedAt: item.PublishedAt,
		}
		if err := s.articles.Create(ctx, a); err != nil {
			// 同時実行で先に登録された場合は一意制約違反になる
			if errors.Is(err, repository.ErrDuplicateArticle) {
				stats.Skipped++
				continue
			}
			s.logger.Error("記事の登録に失敗",
				slog.String("source_id", sourceID),
				slog.String("url", item.Link),
				slog.Any("error", err),
			)
			stats.Failed++
			continue
		}
		stats.Inserted++
	}

	return stats
}
