package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newsroom/internal/article"
	"github.com/hitoshi/newsroom/internal/config"
	"github.com/hitoshi/newsroom/internal/database"
	"github.com/hitoshi/newsroom/internal/feed"
	"github.com/hitoshi/newsroom/internal/fetcher"
	"github.com/hitoshi/newsroom/internal/metrics"
	"github.com/hitoshi/newsroom/internal/repository"
	"github.com/hitoshi/newsroom/internal/security"
	"github.com/hitoshi/newsroom/internal/worker/backfill"
	fetchpkg "github.com/hitoshi/newsroom/internal/worker/fetch"
)

// stores は設定に応じて選択したソース・記事ストアをまとめたもの。
type stores struct {
	sources  repository.SourceRepository
	articles repository.ArticleRepository
	ping     func(ctx context.Context) error
	close    func() error
}

// PingContext はストアへの疎通を確認する。
func (s *stores) PingContext(ctx context.Context) error {
	return s.ping(ctx)
}

// openStores はSTORE_DRIVERに応じてPostgreSQLまたはbboltのストアを開く。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreBolt:
		bs, err := repository.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		slog.Info("bolt store opened", slog.String("path", cfg.BoltPath))
		return &stores{
			sources:  bs.Sources(),
			articles: bs.Articles(),
			ping:     bs.PingContext,
			close:    bs.Close,
		}, nil

	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return &stores{
			sources:  repository.NewPostgresSourceRepo(db),
			articles: repository.NewPostgresArticleRepo(db),
			ping:     db.PingContext,
			close:    db.Close,
		}, nil
	}
}

// pipeline はフェッチ・パース・重複排除・画像補完・探索の各コンポーネントを結線したもの。
type pipeline struct {
	ingestor  *fetchpkg.Ingestor
	scheduler *fetchpkg.Scheduler
	backfill  *backfill.Job
	discovery *feed.DiscoveryService
}

// newGuard はSSRF_PROTECTIONに応じてSSRF対策済みまたは無制限のガードを返す。
func newGuard(cfg *config.Config) security.Guard {
	if cfg.SSRFProtection {
		return security.NewSSRFGuard()
	}
	slog.Warn("SSRF protection is disabled")
	return security.NewOpenGuard()
}

// newPipeline はストアとメトリクスを受け取り、パイプラインの全コンポーネントを生成する。
func newPipeline(cfg *config.Config, st *stores, recorder metrics.Recorder, logger *slog.Logger) *pipeline {
	guard := newGuard(cfg)

	docFetcher := fetcher.New(guard, fetcher.Config{
		Timeout:     cfg.FetchTimeout,
		MaxBodySize: cfg.FetchMaxSize,
		UserAgent:   cfg.FetchUserAgent,
	})
	discoveryFetcher := fetcher.New(guard, fetcher.Config{
		Timeout:     cfg.FetchTimeout,
		MaxBodySize: cfg.FetchMaxSize,
		UserAgent:   cfg.DiscoveryUserAgent,
	})

	parser := feed.NewParser(security.NewSnippetSanitizer())
	upsert := article.NewUpsertService(st.articles, logger)

	ingestor := fetchpkg.NewIngestor(st.sources, docFetcher, parser, upsert, recorder, logger, fetchpkg.Options{
		MaxItems:      cfg.IngestMaxItems,
		MaxConcurrent: cfg.IngestMaxConcurrent,
	})

	resolver := feed.NewImageResolver(docFetcher, logger)
	job := backfill.NewJob(st.articles, resolver, recorder, logger, backfill.Config{
		Interval:   cfg.BackfillInterval,
		Limit:      cfg.BackfillLimit,
		RatePerSec: cfg.BackfillRatePerSec,
	})

	discoverer := feed.NewDiscoverer(discoveryFetcher, logger)

	return &pipeline{
		ingestor:  ingestor,
		scheduler: fetchpkg.NewScheduler(ingestor, logger),
		backfill:  job,
		discovery: feed.NewDiscoveryService(discoverer, st.sources, recorder, logger),
	}
}

// newMetrics はプライベートなレジストリにCollectorを登録して返す。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	return reg, metrics.NewCollector(reg)
}
