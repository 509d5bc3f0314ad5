package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsroom/internal/config"
	"github.com/hitoshi/newsroom/internal/database"
	"github.com/hitoshi/newsroom/internal/handler"
	"github.com/hitoshi/newsroom/internal/logger"
	"github.com/hitoshi/newsroom/internal/metrics"
	"github.com/hitoshi/newsroom/internal/middleware"
	"github.com/hitoshi/newsroom/internal/seed"
)

// stdout はワンショットコマンドの結果（JSON）の出力先。
var stdout io.Writer = os.Stdout

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid LOG_LEVEL, falling back to info", slog.String("error", err.Error()))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store", cfg.StoreDriver),
	)

	rest := commandArgs(args)
	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandIngest:
		return runIngest(cfg)
	case CommandBackfill:
		return runBackfill(cfg, rest)
	case CommandDiscover:
		return runDiscover(cfg, rest)
	case CommandSeed:
		return runSeed(cfg, rest)
	default:
		return runServe(cfg)
	}
}

// signalContext はSIGINTまたはSIGTERMでキャンセルされるコンテキストを返す。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	// 1. ストア
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// 2. メトリクスとパイプライン
	reg, collector := newMetrics()
	p := newPipeline(cfg, st, collector, slog.Default())

	// 3. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitTrigger))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusRecorder:    collector,
		HealthChecker:     st,
		MetricsHandler:    metrics.Handler(reg),
		Ingester:          p.scheduler,
		Backfiller:        p.backfill,
		Discoverer:        p.discovery,
		Sources:           st.sources,
		Articles:          st.articles,
	})

	// 4. HTTPサーバーの起動
	// 取り込みトリガーは全ソースを処理するためWriteTimeoutを長めに取る
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return serveUntilDone(ctx, server)
}

// serveUntilDone はctxがキャンセルされるまでサーバーを動かし、その後グレースフルシャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 取り込みスケジューラ（起動直後に1回実行）と画像補完ジョブを起動し、
// /health と /metrics を提供する運用サーバーを立てる。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	reg, collector := newMetrics()
	p := newPipeline(cfg, st, collector, slog.Default())

	slog.Info("worker starting",
		slog.Duration("ingest_interval", cfg.IngestInterval),
		slog.Duration("backfill_interval", cfg.BackfillInterval),
		slog.Int("max_concurrent", cfg.IngestMaxConcurrent),
	)

	ops := chi.NewRouter()
	ops.Get("/health", handler.NewHealthHandler(st, slog.Default()))
	ops.Handle("/metrics", metrics.Handler(reg))
	opsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           ops,
		ReadHeaderTimeout: 5 * time.Second,
	}
	opsDone := make(chan error, 1)
	go func() { opsDone <- serveUntilDone(ctx, opsServer) }()

	// 画像補完ジョブをバックグラウンドで起動
	go p.backfill.Start(ctx)

	// 取り込みスケジューラをメインgoroutineで実行（ブロッキング）
	p.scheduler.Start(ctx, cfg.IngestInterval)

	if err := <-opsDone; err != nil {
		slog.Error("ops server error", slog.String("error", err.Error()))
	}
	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。bboltストアでは何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreBolt {
		slog.Info("bolt store does not require migrations")
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runOneShot はストアとパイプラインを用意してfnを1回実行し、結果をJSONで出力する。
func runOneShot(cfg *config.Config, fn func(ctx context.Context, st *stores, p *pipeline) (any, error)) error {
	ctx, stop := signalContext()
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	p := newPipeline(cfg, st, metrics.Nop{}, slog.Default())
	result, err := fn(ctx, st, p)
	if err != nil {
		return err
	}
	return writeResult(result)
}

// runIngest は全有効ソースの取り込みを1回実行する。
func runIngest(cfg *config.Config) error {
	return runOneShot(cfg, func(ctx context.Context, _ *stores, p *pipeline) (any, error) {
		return p.scheduler.RunOnce(ctx)
	})
}

// runBackfill は画像補完を1回実行する。引数がなければBACKFILL_LIMITを使う。
func runBackfill(cfg *config.Config, args []string) error {
	limit, err := parseLimitArg(args, cfg.BackfillLimit)
	if err != nil {
		return err
	}
	return runOneShot(cfg, func(ctx context.Context, _ *stores, p *pipeline) (any, error) {
		return p.backfill.RunOnce(ctx, limit)
	})
}

// runDiscover は引数のWebサイトからフィードを探索し、見つかったフィードをソースとして登録する。
func runDiscover(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: discover <website>")
	}
	return runOneShot(cfg, func(ctx context.Context, _ *stores, p *pipeline) (any, error) {
		return p.discovery.DiscoverAndRegister(ctx, args[0])
	})
}

// runSeed は引数のYAMLファイルからソースを登録する。
func runSeed(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: seed <file.yaml>")
	}
	return runOneShot(cfg, func(ctx context.Context, st *stores, _ *pipeline) (any, error) {
		created, err := seed.Apply(ctx, st.sources, args[0])
		if err != nil {
			return nil, err
		}
		slog.Info("seed completed", slog.String("file", args[0]), slog.Int("created", created))
		return map[string]int{"created": created}, nil
	})
}

// parseLimitArg は最初の引数を件数として解釈する。引数がなければdefaultValを返す。
func parseLimitArg(args []string, defaultVal int) (int, error) {
	if len(args) == 0 {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: %w", args[0], err)
	}
	return n, nil
}

// writeResult は結果をインデント付きJSONでstdoutに書き出す。
func writeResult(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
