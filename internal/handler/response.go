package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/autoblog/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvにデコードする。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewInvalidRequestError(err.Error())
	}
	return nil
}

// int64URLParam はパスパラメータを正の整数として取得する。
func int64URLParam(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewInvalidRequestError(fmt.Sprintf("%sが不正です: %q", key, raw))
	}
	return id, nil
}

// scopeParams はクエリからsite_id/blog_idを取得する。
// site_idの省略時はdefaultSiteID、blog_idの省略時は0（ネットワーク）とする。
func scopeParams(r *http.Request, defaultSiteID int64) (int64, int64, error) {
	q := r.URL.Query()

	siteID := defaultSiteID
	if raw := q.Get("site_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return 0, 0, model.NewInvalidScopeError("site_id")
		}
		siteID = v
	}

	var blogID int64
	if raw := q.Get("blog_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return 0, 0, model.NewInvalidScopeError("blog_id")
		}
		blogID = v
	}
	return siteID, blogID, nil
}
