package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/autoblog/internal/dashboard"
	"github.com/hitoshi/autoblog/internal/middleware"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	Build(ctx context.Context, scope dashboard.Scope) (*dashboard.Report, error)
}

// DashboardHandler はインポート活動ダッシュボードのHTTPハンドラー。
type DashboardHandler struct {
	service       DashboardServiceInterface
	defaultSiteID int64
	logger        *slog.Logger
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface, defaultSiteID int64, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{service: service, defaultSiteID: defaultSiteID, logger: logger}
}

// report はクエリのスコープでレポートを組み立てる。blog_idがなければネットワークスコープ。
func (h *DashboardHandler) report(r *http.Request) (*dashboard.Report, error) {
	siteID, blogID, err := scopeParams(r, h.defaultSiteID)
	if err != nil {
		return nil, err
	}
	return h.service.Build(r.Context(), dashboard.Scope{SiteID: siteID, BlogID: blogID})
}

// GetDashboard はダッシュボードをJSONで返す。
// GET /api/dashboard?site_id=&blog_id=
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	report, err := h.report(r)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RenderDashboard はダッシュボードをHTMLで返す。
// GET /dashboard?site_id=&blog_id=
func (h *DashboardHandler) RenderDashboard(w http.ResponseWriter, r *http.Request) {
	report, err := h.report(r)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}

	// テンプレートエラー時に途中までのHTMLを返さない
	var buf bytes.Buffer
	if err := dashboard.Render(&buf, report); err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
