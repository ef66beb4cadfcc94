package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/autoblog/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusByCode はエラーコードに対応するHTTPステータス。
var statusByCode = map[string]int{
	model.ErrCodeInvalidURL:          http.StatusBadRequest,
	model.ErrCodeSSRFBlocked:         http.StatusBadRequest,
	model.ErrCodeInvalidImageMethod:  http.StatusBadRequest,
	model.ErrCodeInvalidScope:        http.StatusBadRequest,
	model.ErrCodeInvalidPollInterval: http.StatusBadRequest,
	model.ErrCodeInvalidRequest:      http.StatusBadRequest,
	model.ErrCodeFeedNotFound:        http.StatusNotFound,
	model.ErrCodeAttachmentNotFound:  http.StatusNotFound,
	model.ErrCodeFeedNotDetected:     http.StatusUnprocessableEntity,
	model.ErrCodeFetchFailed:         http.StatusBadGateway,
	model.ErrCodeImageImportFailed:   http.StatusBadGateway,
}

// StatusForAPIError はAPIErrorのコードに対応するHTTPステータスを返す。
// 未知のコードは400とする。
func StatusForAPIError(apiErr *model.APIError) int {
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusBadRequest
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// WriteError はサービス層のエラーをレスポンスに変換する。
// APIErrorはコードに応じたステータスで返し、それ以外はログに記録して500を返す。
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
		return
	}
	logger.ErrorContext(r.Context(), "request failed", append(requestAttrs(r), slog.String("error", err.Error()))...)
	WriteInternalServerError(w)
}
