package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/autoblog/internal/feed"
	"github.com/hitoshi/autoblog/internal/middleware"
	"github.com/hitoshi/autoblog/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	CreateFeed(ctx context.Context, in feed.CreateFeedInput) (*model.Feed, error)
	ListFeeds(ctx context.Context, siteID, blogID int64) ([]*model.Feed, error)
	GetFeed(ctx context.Context, feedID int64) (*model.Feed, error)
	FeaturedImageSettings(ctx context.Context, feedID int64) (*feed.FeaturedImageSettings, error)
	UpdateFeaturedImage(ctx context.Context, feedID int64, method string, defaultImageID int64) (*feed.FeaturedImageSettings, error)
}

// FeedHandler はフィード管理のHTTPハンドラー。
type FeedHandler struct {
	service       FeedServiceInterface
	defaultSiteID int64
	logger        *slog.Logger
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface, defaultSiteID int64, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{service: service, defaultSiteID: defaultSiteID, logger: logger}
}

// createFeedRequest はフィード登録リクエストのボディ。
type createFeedRequest struct {
	SiteID              int64   `json:"site_id"`
	BlogID              int64   `json:"blog_id"`
	URL                 string  `json:"url"`
	Title               string  `json:"title"`
	FeaturedImage       *string `json:"featured_image"`
	FeaturedDefault     int64   `json:"featured_default"`
	PollIntervalMinutes int     `json:"poll_interval_minutes"`
	Author              string  `json:"author"`
	PostStatus          string  `json:"post_status"`
}

// updateFeaturedImageRequest はアイキャッチ画像設定の更新リクエスト。
type updateFeaturedImageRequest struct {
	Method         string `json:"method"`
	DefaultImageID int64  `json:"default_image_id"`
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	ID                  int64     `json:"id"`
	SiteID              int64     `json:"site_id"`
	BlogID              int64     `json:"blog_id"`
	Title               string    `json:"title"`
	URL                 string    `json:"url"`
	FetchStatus         string    `json:"fetch_status"`
	ConsecutiveErrors   int       `json:"consecutive_errors"`
	ErrorMessage        string    `json:"error_message,omitempty"`
	NextCheckAt         time.Time `json:"next_check_at"`
	FeaturedImage       *string   `json:"featured_image"`
	FeaturedDefault     int64     `json:"featured_default"`
	PollIntervalMinutes int       `json:"poll_interval_minutes"`
	Author              string    `json:"author,omitempty"`
	PostStatus          string    `json:"post_status,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

func toFeedResponse(f *model.Feed) feedResponse {
	return feedResponse{
		ID:                  f.ID,
		SiteID:              f.SiteID,
		BlogID:              f.BlogID,
		Title:               f.Title,
		URL:                 f.URL,
		FetchStatus:         string(f.FetchStatus),
		ConsecutiveErrors:   f.ConsecutiveErrors,
		ErrorMessage:        f.ErrorMessage,
		NextCheckAt:         f.NextCheckAt,
		FeaturedImage:       f.Meta.FeaturedImage,
		FeaturedDefault:     f.Meta.FeaturedDefault,
		PollIntervalMinutes: f.Meta.PollIntervalMinutes,
		Author:              f.Meta.Author,
		PostStatus:          f.Meta.PostStatus,
		CreatedAt:           f.CreatedAt,
	}
}

// CreateFeed はフィード登録を処理する。
// POST /api/feeds
func (h *FeedHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	var req createFeedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	if req.URL == "" {
		middleware.WriteError(w, r, h.logger, model.NewInvalidURLError("URLが空です"))
		return
	}
	if req.SiteID == 0 {
		req.SiteID = h.defaultSiteID
	}

	created, err := h.service.CreateFeed(r.Context(), feed.CreateFeedInput{
		SiteID:              req.SiteID,
		BlogID:              req.BlogID,
		URL:                 req.URL,
		Title:               req.Title,
		FeaturedImage:       req.FeaturedImage,
		FeaturedDefault:     req.FeaturedDefault,
		PollIntervalMinutes: req.PollIntervalMinutes,
		Author:              req.Author,
		PostStatus:          req.PostStatus,
	})
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFeedResponse(created))
}

// ListFeeds はスコープ内のフィード一覧を返す。
// GET /api/feeds?site_id=&blog_id=
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	siteID, blogID, err := scopeParams(r, h.defaultSiteID)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}

	feeds, err := h.service.ListFeeds(r.Context(), siteID, blogID)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}

	resp := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		resp = append(resp, toFeedResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetFeed はフィード詳細を返す。
// GET /api/feeds/{id}
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	feedID, err := int64URLParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}

	f, err := h.service.GetFeed(r.Context(), feedID)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeedResponse(f))
}

// GetFeaturedImage はアイキャッチ画像設定フォームの内容を返す。
// GET /api/feeds/{id}/featured-image
func (h *FeedHandler) GetFeaturedImage(w http.ResponseWriter, r *http.Request) {
	feedID, err := int64URLParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}

	settings, err := h.service.FeaturedImageSettings(r.Context(), feedID)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateFeaturedImage はアイキャッチ画像設定を更新する。
// PUT /api/feeds/{id}/featured-image
func (h *FeedHandler) UpdateFeaturedImage(w http.ResponseWriter, r *http.Request) {
	feedID, err := int64URLParam(r, "id")
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}

	var req updateFeaturedImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}

	settings, err := h.service.UpdateFeaturedImage(r.Context(), feedID, req.Method, req.DefaultImageID)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
