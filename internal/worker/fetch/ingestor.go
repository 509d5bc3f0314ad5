// Package fetch は登録ソースのフィード取り込みと定期実行を提供する。
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/newsroom/internal/article"
	"github.com/hitoshi/newsroom/internal/fetcher"
	"github.com/hitoshi/newsroom/internal/metrics"
	"github.com/hitoshi/newsroom/internal/model"
)

// DefaultMaxItems は1ソース1回あたりに処理する項目数の上限。
// 超えた分は次回以降の取り込みで処理される。
const DefaultMaxItems = 50

// SourceLister は有効なソースを登録順に返す。
type SourceLister interface {
	ListActive(ctx context.Context) ([]*model.Source, error)
}

// DocumentFetcher はURLの文書をテキストで取得する。
type DocumentFetcher interface {
	FetchText(ctx context.Context, rawURL, accept string) (string, error)
}

// FeedParser はフィード文書を項目列に変換する。
type FeedParser interface {
	Parse(doc string) ([]model.FeedItem, error)
}

// ItemInserter はフィード項目を記事として登録する。
type ItemInserter interface {
	InsertItems(ctx context.Context, sourceID string, items []model.FeedItem) article.InsertStats
}

// Options はIngestorの動作設定。
type Options struct {
	// MaxItems は1ソースあたりの処理項目数の上限。0以下はDefaultMaxItems。
	MaxItems int
	// MaxConcurrent はソースを並列処理する最大数。1以下は逐次処理。
	MaxConcurrent int
}

// Ingestor は有効なソースを順に取得・パースし、新しい記事を登録する。
type Ingestor struct {
	sources       SourceLister
	fetcher       DocumentFetcher
	parser        FeedParser
	inserter      ItemInserter
	metrics       metrics.Recorder
	logger        *slog.Logger
	maxItems      int
	maxConcurrent int
}

// NewIngestor はIngestorを生成する。
func NewIngestor(
	sources SourceLister,
	fetcher DocumentFetcher,
	parser FeedParser,
	inserter ItemInserter,
	recorder metrics.Recorder,
	logger *slog.Logger,
	opts Options,
) *Ingestor {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		sources:       sources,
		fetcher:       fetcher,
		parser:        parser,
		inserter:      inserter,
		metrics:       recorder,
		logger:        logger,
		maxItems:      opts.MaxItems,
		maxConcurrent: opts.MaxConcurrent,
	}
}

// IngestAll は有効な全ソースを取り込み、ソースごとの結果を登録順に返す。
// 個々のソースの失敗は結果に記録し、他のソースの処理は続ける。
// エラーを返すのはソース一覧の取得に失敗した場合のみ。
func (in *Ingestor) IngestAll(ctx context.Context) ([]model.FetchOutcome, error) {
	sources, err := in.sources.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("有効なソースの取得に失敗: %w", err)
	}

	outcomes := make([]model.FetchOutcome, len(sources))

	if in.maxConcurrent <= 1 {
		for i, src := range sources {
			outcomes[i] = in.ingestSource(ctx, src)
		}
		return outcomes, nil
	}

	// semaphoreで並列数を制御し、結果は添字で登録順に格納する
	sem := make(chan struct{}, in.maxConcurrent)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, src *model.Source) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = in.ingestSource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	return outcomes, nil
}

// ingestSource は1ソース分の取得・パース・登録を行う。
func (in *Ingestor) ingestSource(ctx context.Context, src *model.Source) model.FetchOutcome {
	start := time.Now()
	defer func() { in.metrics.RecordFetchLatency(time.Since(start)) }()

	doc, err := in.fetcher.FetchText(ctx, src.URL, fetcher.AcceptFeed)
	if err != nil {
		return in.failure(src, err)
	}

	items, err := in.parser.Parse(doc)
	if err != nil {
		return in.failure(src, err)
	}
	if len(items) > in.maxItems {
		items = items[:in.maxItems]
	}

	stats := in.inserter.InsertItems(ctx, src.ID, items)
	in.metrics.RecordFetchSuccess(src.Name)
	in.metrics.RecordArticles(stats.Inserted, stats.Skipped, stats.Failed)

	in.logger.Info("ソースの取り込みが完了しました",
		slog.String("source_id", src.ID),
		slog.String("source", src.Name),
		slog.Int("items", len(items)),
		slog.Int("inserted", stats.Inserted),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", time.Since(start)),
	)

	return model.FetchOutcome{
		Source:   src.Name,
		Inserted: stats.Inserted,
		Skipped:  stats.Skipped,
		Failed:   stats.Failed,
	}
}

func (in *Ingestor) failure(src *model.Source, err error) model.FetchOutcome {
	kind := model.KindOf(err)
	in.metrics.RecordFetchFailure(src.Name, kind)
	in.logger.Warn("ソースの取り込みに失敗しました",
		slog.String("source_id", src.ID),
		slog.String("source", src.Name),
		slog.String("url", src.URL),
		slog.String("kind", kind.String()),
		slog.String("error", err.Error()),
	)
	return model.FetchOutcome{
		Source:  src.Name,
		Error:   true,
		Message: err.Error(),
	}
}
