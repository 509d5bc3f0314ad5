package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/newsroom/internal/middleware"
	"github.com/hitoshi/newsroom/internal/model"
)

// handleServiceError はサービス層のエラーを統一エラーフォーマットのレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var nf *model.NotFoundError
	if errors.As(err, &nf) {
		if nf.Entity == "article" {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewArticleNotFoundError(nf.ID))
			return
		}
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(nf.ID))
		return
	}

	if errors.Is(err, model.ErrInvalidWebsite) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidWebsiteError())
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidWebsite, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeSourceNotFound, model.ErrCodeArticleNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateSource:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// queryInt はクエリパラメータを整数として読む。未指定または数値でない場合はdefaultValを返す。
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
