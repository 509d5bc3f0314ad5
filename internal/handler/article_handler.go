package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/newsroom/internal/middleware"
	"github.com/hitoshi/newsroom/internal/model"
)

// 記事一覧の取得件数。
const (
	DefaultArticleLimit = 30
	MaxArticleLimit     = 200
)

// ArticleLister は記事一覧を取得する。
type ArticleLister interface {
	List(ctx context.Context, q model.ArticleQuery) ([]model.ArticleWithSource, error)
}

// ArticleHandler は記事一覧のHTTPハンドラー。
type ArticleHandler struct {
	articles ArticleLister
	logger   *slog.Logger
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(articles ArticleLister, logger *slog.Logger) *ArticleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleHandler{articles: articles, logger: logger}
}

// articleResponse は記事のAPIレスポンス。
type articleResponse struct {
	ID          string     `json:"id"`
	SourceID    string     `json:"source_id"`
	SourceName  string     `json:"source_name"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Summary     *string    `json:"summary"`
	ImageURL    *string    `json:"image_url"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// List は記事を公開日時の新しい順に返す。
// GET /api/articles?limit=N&source_id=ID
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", DefaultArticleLimit)
	if limit < 1 {
		limit = DefaultArticleLimit
	}
	if limit > MaxArticleLimit {
		limit = MaxArticleLimit
	}

	articles, err := h.articles.List(r.Context(), model.ArticleQuery{
		SourceID: r.URL.Query().Get("source_id"),
		Limit:    limit,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		resp = append(resp, articleResponse{
			ID:          a.ID,
			SourceID:    a.SourceID,
			SourceName:  a.SourceName,
			URL:         a.URL,
			Title:       a.Title,
			Summary:     a.Summary,
			ImageURL:    a.ImageURL,
			PublishedAt: a.PublishedAt,
			CreatedAt:   a.CreatedAt,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}
