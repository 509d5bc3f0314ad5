package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/newsroom/internal/model"
)

func TestArticleHandler_List_LimitAndFilter(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
		wantSrc   string
	}{
		{"default", "", DefaultArticleLimit, ""},
		{"explicit", "?limit=5", 5, ""},
		{"capped", "?limit=1000", MaxArticleLimit, ""},
		{"zero_falls_back", "?limit=0", DefaultArticleLimit, ""},
		{"source_filter", "?source_id=s1&limit=10", 10, "s1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.ArticleQuery
			lister := &mockArticleLister{
				listFn: func(ctx context.Context, q model.ArticleQuery) ([]model.ArticleWithSource, error) {
					got = q
					return nil, nil
				},
			}
			h := NewArticleHandler(lister, nil)

			w := httptest.NewRecorder()
			h.List(w, httptest.NewRequest(http.MethodGet, "/api/articles"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if got.Limit != tt.wantLimit || got.SourceID != tt.wantSrc {
				t.Errorf("query = %+v, want limit=%d source=%q", got, tt.wantLimit, tt.wantSrc)
			}
		})
	}
}

func TestArticleHandler_List_ResponseShape(t *testing.T) {
	published := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	image := "https://cdn.example.com/a.jpg"
	lister := &mockArticleLister{
		listFn: func(ctx context.Context, q model.ArticleQuery) ([]model.ArticleWithSource, error) {
			return []model.ArticleWithSource{
				{
					Article: model.Article{
						ID: "a1", SourceID: "s1", URL: "https://example.com/a1", Title: "First",
						ImageURL: &image, PublishedAt: &published,
					},
					SourceName: "Example",
				},
			}, nil
		},
	}
	h := NewArticleHandler(lister, nil)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/articles", nil))

	var got []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	a := got[0]
	if a["source_name"] != "Example" || a["image_url"] != image {
		t.Errorf("article = %v", a)
	}
	if a["summary"] != nil {
		t.Errorf("summary = %v, want null", a["summary"])
	}
	if a["published_at"] != "2026-03-01T09:00:00Z" {
		t.Errorf("published_at = %v", a["published_at"])
	}
}
