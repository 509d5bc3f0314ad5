package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/newsroom/internal/model"
)

// DefaultInterval は定期取り込みの既定間隔。
const DefaultInterval = 10 * time.Minute

// AllIngester は全ソースの取り込みを1回実行する。
type AllIngester interface {
	IngestAll(ctx context.Context) ([]model.FetchOutcome, error)
}

// Scheduler は一定間隔で全ソースの取り込みを実行する。
// 手動実行と重なっても排他はしない。重複登録は記事URLの一意性で防ぐ。
type Scheduler struct {
	ingester AllIngester
	logger   *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(ingester AllIngester, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{ingester: ingester, logger: logger}
}

// Start は起動直後に1回、以降intervalごとに取り込みを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("取り込みサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は全ソースの取り込みを1回実行し、集計をログに記録する。
func (s *Scheduler) RunOnce(ctx context.Context) ([]model.FetchOutcome, error) {
	start := time.Now()

	outcomes, err := s.ingester.IngestAll(ctx)
	if err != nil {
		return nil, err
	}

	var inserted, skipped, failedSources int
	for _, o := range outcomes {
		inserted += o.Inserted
		skipped += o.Skipped
		if o.Error {
			failedSources++
		}
	}

	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("source_count", len(outcomes)),
		slog.Int("failed_sources", failedSources),
		slog.Int("inserted", inserted),
		slog.Int("skipped", skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return outcomes, nil
}
