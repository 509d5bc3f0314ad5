package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/newsroom/internal/model"
	"github.com/hitoshi/newsroom/internal/repository"
)

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func TestSourceHandler_List_IncludesArticleCount(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := &mockSourceStore{
		listFn: func(ctx context.Context) ([]model.SourceWithCount, error) {
			return []model.SourceWithCount{
				{Source: model.Source{ID: "s1", Name: "Alpha", URL: "https://a.example.com/rss", Type: "rss", IsActive: true, CreatedAt: created}, ArticleCount: 7},
				{Source: model.Source{ID: "s2", Name: "Beta", URL: "https://b.example.com/rss", Type: "feed"}, ArticleCount: 0},
			}, nil
		},
	}
	h := NewSourceHandler(store, nil)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/sources", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0]["article_count"] != float64(7) || got[0]["is_active"] != true {
		t.Errorf("source[0] = %v", got[0])
	}
	if count, ok := got[1]["article_count"]; !ok || count != float64(0) {
		t.Errorf("article_count should be present even when zero: %v", got[1])
	}
}

func TestSourceHandler_Create_Success(t *testing.T) {
	var saved *model.Source
	store := &mockSourceStore{
		createFn: func(ctx context.Context, source *model.Source) error {
			source.ID = "new-id"
			saved = source
			return nil
		},
	}
	h := NewSourceHandler(store, nil)

	body := `{"name":"  Example  ","url":" https://example.com/rss.xml "}`
	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(body)))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if saved == nil {
		t.Fatal("store.Create was not called")
	}
	if saved.Name != "Example" || saved.URL != "https://example.com/rss.xml" {
		t.Errorf("saved = %+v", saved)
	}
	if saved.Type != "rss" || !saved.IsActive {
		t.Errorf("defaults not applied: type=%q active=%v", saved.Type, saved.IsActive)
	}

	var got map[string]any
	json.NewDecoder(w.Body).Decode(&got)
	if got["id"] != "new-id" {
		t.Errorf("id = %v", got["id"])
	}
	if _, ok := got["article_count"]; ok {
		t.Error("article_count should be omitted on create")
	}
}

func TestSourceHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed_json", `{`},
		{"missing_name", `{"url":"https://example.com/rss"}`},
		{"missing_url", `{"name":"Example"}`},
		{"non_http_url", `{"name":"Example","url":"ftp://example.com/rss"}`},
		{"relative_url", `{"name":"Example","url":"/rss.xml"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockSourceStore{
				createFn: func(ctx context.Context, source *model.Source) error {
					t.Error("store.Create should not be called")
					return nil
				},
			}
			h := NewSourceHandler(store, nil)

			w := httptest.NewRecorder()
			h.Create(w, httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeInvalidRequest {
				t.Errorf("code = %q", body["code"])
			}
		})
	}
}

func TestSourceHandler_Create_Duplicate(t *testing.T) {
	store := &mockSourceStore{
		createFn: func(ctx context.Context, source *model.Source) error {
			return repository.ErrDuplicateSource
		},
	}
	h := NewSourceHandler(store, nil)

	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(`{"name":"A","url":"https://a.example.com/rss"}`)))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeDuplicateSource {
		t.Errorf("code = %q", body["code"])
	}
}

func TestSourceHandler_SetActive(t *testing.T) {
	store := &mockSourceStore{
		setActiveFn: func(ctx context.Context, id string, active bool) (*model.Source, error) {
			if id != "s1" {
				t.Errorf("id = %q, want s1", id)
			}
			if active {
				t.Error("active = true, want false")
			}
			return &model.Source{ID: id, Name: "Alpha", IsActive: active}, nil
		},
	}
	h := NewSourceHandler(store, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/sources/s1/active", bytes.NewBufferString(`{"is_active":false}`))
	req = withChiURLParam(req, "id", "s1")
	w := httptest.NewRecorder()
	h.SetActive(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]any
	json.NewDecoder(w.Body).Decode(&got)
	if got["is_active"] != false {
		t.Errorf("is_active = %v", got["is_active"])
	}
}

func TestSourceHandler_SetActive_MissingFlag(t *testing.T) {
	h := NewSourceHandler(&mockSourceStore{}, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/sources/s1/active", bytes.NewBufferString(`{}`))
	req = withChiURLParam(req, "id", "s1")
	w := httptest.NewRecorder()
	h.SetActive(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSourceHandler_SetActive_NotFound(t *testing.T) {
	store := &mockSourceStore{
		setActiveFn: func(ctx context.Context, id string, active bool) (*model.Source, error) {
			return nil, &model.NotFoundError{Entity: "source", ID: id}
		},
	}
	h := NewSourceHandler(store, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/sources/missing/active", bytes.NewBufferString(`{"is_active":true}`))
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()
	h.SetActive(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeSourceNotFound {
		t.Errorf("code = %q", body["code"])
	}
}

func TestSourceHandler_List_StoreError(t *testing.T) {
	store := &mockSourceStore{
		listFn: func(ctx context.Context) ([]model.SourceWithCount, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewSourceHandler(store, nil)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/sources", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
