package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/autoblog/internal/dashboard"
	"github.com/hitoshi/autoblog/internal/feed"
	"github.com/hitoshi/autoblog/internal/model"
)

// --- モック定義 ---

// mockFeedService はFeedServiceInterfaceのモック実装。
type mockFeedService struct {
	createFeedFn          func(ctx context.Context, in feed.CreateFeedInput) (*model.Feed, error)
	listFeedsFn           func(ctx context.Context, siteID, blogID int64) ([]*model.Feed, error)
	getFeedFn             func(ctx context.Context, feedID int64) (*model.Feed, error)
	featuredImageFn       func(ctx context.Context, feedID int64) (*feed.FeaturedImageSettings, error)
	updateFeaturedImageFn func(ctx context.Context, feedID int64, method string, defaultImageID int64) (*feed.FeaturedImageSettings, error)
}

func (m *mockFeedService) CreateFeed(ctx context.Context, in feed.CreateFeedInput) (*model.Feed, error) {
	if m.createFeedFn != nil {
		return m.createFeedFn(ctx, in)
	}
	return &model.Feed{}, nil
}

func (m *mockFeedService) ListFeeds(ctx context.Context, siteID, blogID int64) ([]*model.Feed, error) {
	if m.listFeedsFn != nil {
		return m.listFeedsFn(ctx, siteID, blogID)
	}
	return nil, nil
}

func (m *mockFeedService) GetFeed(ctx context.Context, feedID int64) (*model.Feed, error) {
	if m.getFeedFn != nil {
		return m.getFeedFn(ctx, feedID)
	}
	return nil, model.NewFeedNotFoundError(feedID)
}

func (m *mockFeedService) FeaturedImageSettings(ctx context.Context, feedID int64) (*feed.FeaturedImageSettings, error) {
	if m.featuredImageFn != nil {
		return m.featuredImageFn(ctx, feedID)
	}
	return &feed.FeaturedImageSettings{FeedID: feedID}, nil
}

func (m *mockFeedService) UpdateFeaturedImage(ctx context.Context, feedID int64, method string, defaultImageID int64) (*feed.FeaturedImageSettings, error) {
	if m.updateFeaturedImageFn != nil {
		return m.updateFeaturedImageFn(ctx, feedID, method, defaultImageID)
	}
	return &feed.FeaturedImageSettings{FeedID: feedID}, nil
}

// mockMediaService はMediaServiceInterfaceのモック実装。
type mockMediaService struct {
	fetchAndStoreFn func(ctx context.Context, imageURL string, ownerPostID int64) (int64, error)
	attachments     map[int64]*model.Attachment
	getErr          error
}

func (m *mockMediaService) FetchAndStore(ctx context.Context, imageURL string, ownerPostID int64) (int64, error) {
	if m.fetchAndStoreFn != nil {
		return m.fetchAndStoreFn(ctx, imageURL, ownerPostID)
	}
	return 0, nil
}

func (m *mockMediaService) Get(_ context.Context, id int64) (*model.Attachment, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.attachments[id], nil
}

func (m *mockMediaService) Open(_ context.Context, guid string) (*model.Attachment, error) {
	for _, a := range m.attachments {
		if a.GUID == guid {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockMediaService) DisplayURL(guid string) string {
	return "https://autoblog.example/media/" + guid
}

// mockDashboardService はDashboardServiceInterfaceのモック実装。
type mockDashboardService struct {
	buildFn func(ctx context.Context, scope dashboard.Scope) (*dashboard.Report, error)
	scopes  []dashboard.Scope
}

func (m *mockDashboardService) Build(ctx context.Context, scope dashboard.Scope) (*dashboard.Report, error) {
	m.scopes = append(m.scopes, scope)
	if m.buildFn != nil {
		return m.buildFn(ctx, scope)
	}
	return &dashboard.Report{Scope: scope}, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error { return m.err }

// --- テストヘルパー ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func strPtr(s string) *string { return &s }
