package feed

import (
	"context"
	"sync"

	"github.com/hitoshi/newsroom/internal/model"
)

// stubFetcher はURLごとに固定の本文を返すTextFetcher。
// 未登録のURLには404のFetchErrorを返す。
type stubFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	calls   []string
	accepts []string
}

func newStubFetcher(pages map[string]string) *stubFetcher {
	return &stubFetcher{pages: pages}
}

func (s *stubFetcher) FetchText(_ context.Context, rawURL, accept string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rawURL)
	s.accepts = append(s.accepts, accept)
	if body, ok := s.pages[rawURL]; ok {
		return body, nil
	}
	return "", &model.FetchError{URL: rawURL, StatusCode: 404}
}
