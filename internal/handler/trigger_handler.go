package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/newsroom/internal/middleware"
	"github.com/hitoshi/newsroom/internal/model"
)

// DefaultBackfillLimit はPOST /api/backfillでlimit未指定時の件数。
const DefaultBackfillLimit = 50

// IngestRunner は全ソースのインジェストを1回実行する。
type IngestRunner interface {
	RunOnce(ctx context.Context) ([]model.FetchOutcome, error)
}

// BackfillRunner は画像補完を1回実行する。
type BackfillRunner interface {
	RunOnce(ctx context.Context, limit int) (model.BackfillResult, error)
}

// SourceDiscoverer はWebサイトのフィードを検出してソースとして登録する。
type SourceDiscoverer interface {
	DiscoverAndRegister(ctx context.Context, website string) (*model.DiscoveryResult, error)
}

// TriggerHandler はパイプラインを手動実行するHTTPハンドラー。
type TriggerHandler struct {
	ingester   IngestRunner
	backfiller BackfillRunner
	discoverer SourceDiscoverer
	logger     *slog.Logger
}

// NewTriggerHandler はTriggerHandlerを生成する。
func NewTriggerHandler(ingester IngestRunner, backfiller BackfillRunner, discoverer SourceDiscoverer, logger *slog.Logger) *TriggerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerHandler{
		ingester:   ingester,
		backfiller: backfiller,
		discoverer: discoverer,
		logger:     logger,
	}
}

// discoverRequest はフィード探索リクエストのボディ。
type discoverRequest struct {
	Website string `json:"website"`
}

// Ingest は全有効ソースのインジェストを実行し、ソースごとの結果を返す。
// POST /api/ingest
func (h *TriggerHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	outcomes, err := h.ingester.RunOnce(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if outcomes == nil {
		outcomes = []model.FetchOutcome{}
	}
	middleware.WriteJSON(w, http.StatusOK, outcomes)
}

// Backfill はプレビュー画像が未設定の記事の画像補完を実行する。
// POST /api/backfill?limit=N
func (h *TriggerHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", DefaultBackfillLimit)

	result, err := h.backfiller.RunOnce(r.Context(), limit)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Discover はWebサイトからフィードを探索し、見つかったフィードをソースとして登録する。
// POST /api/sources/discover
func (h *TriggerHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	result, err := h.discoverer.DiscoverAndRegister(r.Context(), req.Website)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}
