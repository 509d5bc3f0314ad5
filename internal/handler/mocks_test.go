package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/newsroom/internal/model"
)

// --- モック定義 ---

type mockIngestRunner struct {
	runOnceFn func(ctx context.Context) ([]model.FetchOutcome, error)
}

func (m *mockIngestRunner) RunOnce(ctx context.Context) ([]model.FetchOutcome, error) {
	if m.runOnceFn != nil {
		return m.runOnceFn(ctx)
	}
	return nil, nil
}

type mockBackfillRunner struct {
	runOnceFn func(ctx context.Context, limit int) (model.BackfillResult, error)
}

func (m *mockBackfillRunner) RunOnce(ctx context.Context, limit int) (model.BackfillResult, error) {
	if m.runOnceFn != nil {
		return m.runOnceFn(ctx, limit)
	}
	return model.BackfillResult{}, nil
}

type mockSourceDiscoverer struct {
	discoverFn func(ctx context.Context, website string) (*model.DiscoveryResult, error)
}

func (m *mockSourceDiscoverer) DiscoverAndRegister(ctx context.Context, website string) (*model.DiscoveryResult, error) {
	if m.discoverFn != nil {
		return m.discoverFn(ctx, website)
	}
	return &model.DiscoveryResult{Website: website, Feeds: []model.FeedCandidate{}}, nil
}

type mockSourceStore struct {
	listFn      func(ctx context.Context) ([]model.SourceWithCount, error)
	createFn    func(ctx context.Context, source *model.Source) error
	setActiveFn func(ctx context.Context, id string, active bool) (*model.Source, error)
}

func (m *mockSourceStore) List(ctx context.Context) ([]model.SourceWithCount, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockSourceStore) Create(ctx context.Context, source *model.Source) error {
	if m.createFn != nil {
		return m.createFn(ctx, source)
	}
	return nil
}

func (m *mockSourceStore) SetActive(ctx context.Context, id string, active bool) (*model.Source, error) {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, id, active)
	}
	return &model.Source{ID: id, IsActive: active}, nil
}

type mockArticleLister struct {
	listFn func(ctx context.Context, q model.ArticleQuery) ([]model.ArticleWithSource, error)
}

func (m *mockArticleLister) List(ctx context.Context, q model.ArticleQuery) ([]model.ArticleWithSource, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return nil, nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error { return m.err }

// --- テストヘルパー ---

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
