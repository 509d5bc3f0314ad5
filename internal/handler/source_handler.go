package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/newsroom/internal/middleware"
	"github.com/hitoshi/newsroom/internal/model"
	"github.com/hitoshi/newsroom/internal/repository"
)

// defaultSourceType は手動登録時に種別が省略された場合の値。
const defaultSourceType = "rss"

// SourceStore はソースハンドラーが必要とするストア操作。
type SourceStore interface {
	List(ctx context.Context) ([]model.SourceWithCount, error)
	Create(ctx context.Context, source *model.Source) error
	SetActive(ctx context.Context, id string, active bool) (*model.Source, error)
}

// SourceHandler はソースレジストリのHTTPハンドラー。
type SourceHandler struct {
	store  SourceStore
	logger *slog.Logger
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(store SourceStore, logger *slog.Logger) *SourceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceHandler{store: store, logger: logger}
}

// createSourceRequest はソース登録リクエストのボディ。
type createSourceRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// setActiveRequest は有効フラグ更新リクエストのボディ。
type setActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// sourceResponse はソース情報のAPIレスポンス。
type sourceResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Type         string    `json:"type"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	ArticleCount *int      `json:"article_count,omitempty"`
}

// List は全ソースを記事数付きで返す。
// GET /api/sources
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]sourceResponse, 0, len(sources))
	for _, s := range sources {
		item := toSourceResponse(&s.Source)
		count := s.ArticleCount
		item.ArticleCount = &count
		resp = append(resp, item)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Create はソースを1件登録する。
// POST /api/sources
func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	name := strings.TrimSpace(req.Name)
	rawURL := strings.TrimSpace(req.URL)
	sourceType := strings.TrimSpace(req.Type)
	if sourceType == "" {
		sourceType = defaultSourceType
	}

	if name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("name is required"))
		return
	}
	if !isHTTPURL(rawURL) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("url must be an absolute http(s) URL"))
		return
	}

	source := &model.Source{
		Name:     name,
		URL:      rawURL,
		Type:     sourceType,
		IsActive: true,
	}
	if err := h.store.Create(r.Context(), source); err != nil {
		if errors.Is(err, repository.ErrDuplicateSource) {
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewDuplicateSourceError(rawURL))
			return
		}
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("source created",
		slog.String("source_id", source.ID),
		slog.String("url", source.URL),
	)
	middleware.WriteJSON(w, http.StatusCreated, toSourceResponse(source))
}

// SetActive はソースの有効フラグを更新する。
// PATCH /api/sources/{id}/active
func (h *SourceHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("is_active (boolean) is required"))
		return
	}

	source, err := h.store.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toSourceResponse(source))
}

func toSourceResponse(s *model.Source) sourceResponse {
	return sourceResponse{
		ID:        s.ID,
		Name:      s.Name,
		URL:       s.URL,
		Type:      s.Type,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
