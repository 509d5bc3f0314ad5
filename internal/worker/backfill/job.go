// Package backfill はプレビュー画像が未設定の記事にog:imageを補完するバッチジョブを提供する。
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/newsroom/internal/metrics"
	"github.com/hitoshi/newsroom/internal/model"
)

const (
	// MinLimit と MaxLimit は1回あたりの対象記事数の範囲。
	MinLimit = 1
	MaxLimit = 200
)

// ArticleStore は画像補完に必要な記事ストア操作。
type ArticleStore interface {
	FindMissingImage(ctx context.Context, limit int) ([]*model.Article, error)
	UpdateImage(ctx context.Context, id, imageURL string) error
}

// ImageResolver は記事ページからプレビュー画像URLを取得する。
// 見つからない場合や取得に失敗した場合は空文字を返す。
type ImageResolver interface {
	ResolveOgImage(ctx context.Context, pageURL string) string
}

// Config はバッチジョブの設定パラメータ。
type Config struct {
	// Interval はバッチジョブの実行間隔（デフォルト: 15分）。
	Interval time.Duration
	// Limit は定期実行1回あたりの対象記事数（デフォルト: 30）。
	Limit int
	// RatePerSec はページ取得の最大頻度。0以下は無制限。
	RatePerSec float64
}

// DefaultConfig はデフォルトのバッチジョブ設定を返す。
func DefaultConfig() Config {
	return Config{
		Interval:   15 * time.Minute,
		Limit:      30,
		RatePerSec: 2,
	}
}

// Job は画像未設定の記事を新しい順に取得し、og:imageを補完する。
type Job struct {
	articles ArticleStore
	resolver ImageResolver
	metrics  metrics.Recorder
	logger   *slog.Logger
	config   Config
	limiter  *rate.Limiter
}

// NewJob はJobの新しいインスタンスを生成する。
func NewJob(articles ArticleStore, resolver ImageResolver, recorder metrics.Recorder, logger *slog.Logger, config Config) *Job {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Limit <= 0 {
		config.Limit = defaults.Limit
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSec), 1)
	}

	return &Job{
		articles: articles,
		resolver: resolver,
		metrics:  recorder,
		logger:   logger,
		config:   config,
		limiter:  limiter,
	}
}

// ClampLimit はlimitを[MinLimit, MaxLimit]に丸める。
func ClampLimit(limit int) int {
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Start はバッチジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info("画像補完バッチジョブを開始しました",
		slog.Duration("interval", j.config.Interval),
		slog.Int("limit", j.config.Limit),
		slog.Float64("rate_per_sec", j.config.RatePerSec),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("画像補完バッチジョブを停止しました")
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx, j.config.Limit); err != nil {
				j.logger.Error("画像補完バッチサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回のバッチサイクルを実行する。
// Checkedは取得した記事数、Filledは画像を設定できた数、Skippedはそれ以外。
// エラーを返すのは対象記事の取得に失敗した場合のみ。
func (j *Job) RunOnce(ctx context.Context, limit int) (model.BackfillResult, error) {
	start := time.Now()
	limit = ClampLimit(limit)

	articles, err := j.articles.FindMissingImage(ctx, limit)
	if err != nil {
		return model.BackfillResult{}, fmt.Errorf("画像未設定の記事の取得に失敗しました: %w", err)
	}

	result := model.BackfillResult{Checked: len(articles)}

	for _, a := range articles {
		if err := j.limiter.Wait(ctx); err != nil {
			// キャンセル後の残りは未処理としてスキップ扱い
			result.Skipped += result.Checked - result.Filled - result.Skipped
			break
		}

		image := j.resolver.ResolveOgImage(ctx, a.URL)
		if image == "" {
			result.Skipped++
			continue
		}

		if err := j.articles.UpdateImage(ctx, a.ID, image); err != nil {
			j.logger.Error("プレビュー画像の更新に失敗しました",
				slog.String("article_id", a.ID),
				slog.String("url", a.URL),
				slog.String("error", err.Error()),
			)
			result.Skipped++
			continue
		}
		result.Filled++
	}

	j.metrics.RecordBackfill(result)
	j.logger.Info("画像補完バッチサイクルが完了しました",
		slog.Int("limit", limit),
		slog.Int("checked", result.Checked),
		slog.Int("filled", result.Filled),
		slog.Int("skipped", result.Skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}
