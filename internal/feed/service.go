package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/newsroom/internal/model"
)

// noFeedsMessage は候補が1件も検証を通らなかった場合のメッセージ。
const noFeedsMessage = "No feeds discovered"

// CandidateDiscoverer はWebサイトからフィード候補を検出する。
type CandidateDiscoverer interface {
	Discover(ctx context.Context, website string) ([]model.FeedCandidate, error)
}

// SourceSink は新規ソースをまとめて登録する。同一URLのソースはスキップされる。
type SourceSink interface {
	CreateMany(ctx context.Context, sources []model.NewSource) (int, error)
}

// DiscoveryMetrics はディスカバリーのメトリクスを記録する。
type DiscoveryMetrics interface {
	RecordDiscovery(verified, created int)
}

// DiscoveryService はディスカバリー結果をソースとして登録する。
type DiscoveryService struct {
	discoverer CandidateDiscoverer
	sink       SourceSink
	metrics    DiscoveryMetrics
	logger     *slog.Logger
}

// NewDiscoveryService はDiscoveryServiceを生成する。metricsはnilでもよい。
func NewDiscoveryService(discoverer CandidateDiscoverer, sink SourceSink, metrics DiscoveryMetrics, logger *slog.Logger) *DiscoveryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoveryService{
		discoverer: discoverer,
		sink:       sink,
		metrics:    metrics,
		logger:     logger,
	}
}

// DiscoverAndRegister はwebsiteのフィードを検出し、検証済みの候補をソースとして登録する。
// ソース名は候補のタイトル、タイトルがなければWebサイトのホスト名を使う。
func (s *DiscoveryService) DiscoverAndRegister(ctx context.Context, website string) (*model.DiscoveryResult, error) {
	site := NormalizeWebsite(website)
	if site == "" {
		return nil, model.ErrInvalidWebsite
	}

	feeds, err := s.discoverer.Discover(ctx, site)
	if err != nil {
		if errors.Is(err, model.ErrInvalidWebsite) {
			return nil, err
		}
		return nil, fmt.Errorf("フィードの検出に失敗しました: %w", err)
	}

	result := &model.DiscoveryResult{
		Website: site,
		Feeds:   feeds,
	}

	if len(feeds) == 0 {
		result.Feeds = []model.FeedCandidate{}
		result.Message = noFeedsMessage
		s.record(0, 0)
		s.logger.Info("ディスカバリー: フィード未検出", slog.String("website", site))
		return result, nil
	}

	host := HostOf(site)
	batch := make([]model.NewSource, 0, len(feeds))
	for _, f := range feeds {
		name := f.Title
		if name == "" {
			name = host
		}
		batch = append(batch, model.NewSource{
			Name:     name,
			Type:     model.SourceTypeFeed,
			URL:      f.URL,
			IsActive: true,
		})
	}

	created, err := s.sink.CreateMany(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("ソースの登録に失敗しました: %w", err)
	}

	result.OK = true
	result.Created = created
	s.record(len(feeds), created)

	s.logger.Info("ディスカバリー完了",
		slog.String("website", site),
		slog.Int("verified", len(feeds)),
		slog.Int("created", created),
	)

	return result, nil
}

func (s *DiscoveryService) record(verified, created int) {
	if s.metrics != nil {
		s.metrics.RecordDiscovery(verified, created)
	}
}
