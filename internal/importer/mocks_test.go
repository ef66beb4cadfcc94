package importer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/autoblog/internal/featureimage"
	"github.com/hitoshi/autoblog/internal/model"
)

// --- モック定義 ---

// mockFeedRepo はFeedRepositoryのテスト用モック。
type mockFeedRepo struct {
	mu                   sync.Mutex
	listDueForCheckFunc  func(ctx context.Context) ([]*model.Feed, error)
	updateFetchStateFunc func(ctx context.Context, feed *model.Feed) error
	updated              []model.Feed
}

func (m *mockFeedRepo) FindByID(ctx context.Context, id int64) (*model.Feed, error) {
	return nil, nil
}

func (m *mockFeedRepo) ListByScope(ctx context.Context, siteID, blogID int64) ([]*model.Feed, error) {
	return nil, nil
}

func (m *mockFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	return nil
}

func (m *mockFeedRepo) UpdateMeta(ctx context.Context, feedID int64, meta model.FeedMeta) error {
	return nil
}

func (m *mockFeedRepo) ListDueForCheck(ctx context.Context) ([]*model.Feed, error) {
	if m.listDueForCheckFunc != nil {
		return m.listDueForCheckFunc(ctx)
	}
	return nil, nil
}

func (m *mockFeedRepo) UpdateFetchState(ctx context.Context, feed *model.Feed) error {
	m.mu.Lock()
	m.updated = append(m.updated, *feed)
	m.mu.Unlock()
	if m.updateFetchStateFunc != nil {
		return m.updateFetchStateFunc(ctx, feed)
	}
	return nil
}

// mockPostRepo はPostRepositoryのテスト用モック。GUIDとリンクで既存投稿を管理する。
type mockPostRepo struct {
	mu        sync.Mutex
	nextID    int64
	posts     []*model.Post
	createErr error
}

func (m *mockPostRepo) ExistsByGUID(ctx context.Context, feedID int64, guid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.FeedID == feedID && p.GUID == guid {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPostRepo) ExistsByLink(ctx context.Context, feedID int64, link string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.FeedID == feedID && link != "" && p.Link == link {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPostRepo) Create(ctx context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	post.ID = m.nextID
	post.CreatedAt = time.Now()
	cp := *post
	m.posts = append(m.posts, &cp)
	return nil
}

func (m *mockPostRepo) SetFeaturedImage(ctx context.Context, postID, attachmentID int64) error {
	return nil
}

// mockLogRepo はLogRepositoryのテスト用モック。
type mockLogRepo struct {
	mu      sync.Mutex
	records []*model.LogRecord
}

func (m *mockLogRepo) Insert(ctx context.Context, record *model.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return nil
}

func (m *mockLogRepo) ListSince(ctx context.Context, feedIDs []int64, since int64) ([]*model.LogRecord, error) {
	return nil, nil
}

func (m *mockLogRepo) byType(t model.LogType) []*model.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LogRecord
	for _, r := range m.records {
		if r.LogType == t {
			out = append(out, r)
		}
	}
	return out
}

// mockResolver はImageResolverのテスト用モック。呼び出しを記録する。
type mockResolver struct {
	mu     sync.Mutex
	calls  []int64
	items  []featureimage.FeedItem
	result featureimage.Result
}

func (m *mockResolver) Apply(ctx context.Context, postID int64, item featureimage.FeedItem, cfg model.FeedConfig) featureimage.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, postID)
	m.items = append(m.items, item)
	return m.result
}

// mockSanitizer は印を付けて本文を返す。
type mockSanitizer struct{}

func (mockSanitizer) Sanitize(rawHTML string) string {
	return "[sanitized]" + rawHTML
}

type mockSSRFGuard struct {
	blockAll bool
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.blockAll {
		return fmt.Errorf("blocked by SSRF guard")
	}
	return nil
}

// mockMetrics はMetricsCollectorのテスト用モック。
type mockMetrics struct {
	mu            sync.Mutex
	results       []string
	postsImported int
}

func (m *mockMetrics) RecordFeedImport(result string) {
	m.mu.Lock()
	m.results = append(m.results, result)
	m.mu.Unlock()
}
func (m *mockMetrics) RecordHTTPStatus(statusCode int)            {}
func (m *mockMetrics) RecordImportLatency(duration time.Duration) {}
func (m *mockMetrics) RecordPostsImported(count int) {
	m.mu.Lock()
	m.postsImported += count
	m.mu.Unlock()
}
func (m *mockMetrics) RecordFeaturedImage(outcome string) {}
func (m *mockMetrics) RecordImageFetchFailure()           {}

// mockImporter はFeedImporterServiceのテスト用モック。
type mockImporter struct {
	importFunc func(ctx context.Context, feed *model.Feed) error
}

func (m *mockImporter) Import(ctx context.Context, feed *model.Feed) error {
	if m.importFunc != nil {
		return m.importFunc(ctx, feed)
	}
	return nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
