package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/unicode/norm"

	"github.com/hitoshi/autoblog/internal/featureimage"
	"github.com/hitoshi/autoblog/internal/metrics"
	"github.com/hitoshi/autoblog/internal/model"
	"github.com/hitoshi/autoblog/internal/repository"
)

// userAgent はフィード取得時のUser-Agent。
const userAgent = "Autoblog/1.0 Feed Importer"

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Sanitizer は投稿本文のサニタイズを行う。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// ImageResolver は作成済みの投稿にアイキャッチ画像を設定する。
type ImageResolver interface {
	Apply(ctx context.Context, postID int64, item featureimage.FeedItem, cfg model.FeedConfig) featureimage.Result
}

// Options はImporterの動作設定。
type Options struct {
	Timeout     time.Duration
	MaxBodySize int64
	// DefaultMethod はfeed_metaに取得方法が設定されていないフィードに使う方法。
	DefaultMethod model.FeaturedImageMethod
	// Retry は取得失敗時のバックオフ設定。ゼロ値の項目は既定値で補う。
	Retry RetryPolicy
}

// Importer は個別フィードの取得と投稿の作成を行う。
// ETag/Last-Modifiedを使用した条件付きGET、SSRF検証、gofeedによるパース、
// 記事ごとの投稿作成とアイキャッチ画像の決定、活動ログの記録を実行する。
type Importer struct {
	feedRepo  repository.FeedRepository
	postRepo  repository.PostRepository
	logRepo   repository.LogRepository
	resolver  ImageResolver
	sanitizer Sanitizer
	ssrfGuard SSRFValidator
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

// NewImporter はImporterの新しいインスタンスを生成する。metricsはnilでもよい。
func NewImporter(
	feedRepo repository.FeedRepository,
	postRepo repository.PostRepository,
	logRepo repository.LogRepository,
	resolver ImageResolver,
	sanitizer Sanitizer,
	ssrfGuard SSRFValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Importer {
	opts.Retry = opts.Retry.withDefaults()
	return &Importer{
		feedRepo:  feedRepo,
		postRepo:  postRepo,
		logRepo:   logRepo,
		resolver:  resolver,
		sanitizer: sanitizer,
		ssrfGuard: ssrfGuard,
		metrics:   collector,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Summary はフィード1件分のインポート結果の集計。
type Summary struct {
	Items      int `json:"items"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	Images     int `json:"images"`
}

func (s Summary) info() map[string]any {
	return map[string]any{
		"items":      s.Items,
		"imported":   s.Imported,
		"duplicates": s.Duplicates,
		"failed":     s.Failed,
		"images":     s.Images,
	}
}

// Import はフィードを取得して新しい記事を投稿として取り込み、フィード状態を更新する。
// 1回の実行で記録されるログはすべて同じcron_id（実行開始時刻）を持つ。
func (im *Importer) Import(ctx context.Context, feed *model.Feed) error {
	start := im.now()
	cronID := start.Unix()
	st := feedState{policy: im.opts.Retry, now: start}
	defer func() {
		if im.metrics != nil {
			im.metrics.RecordImportLatency(time.Since(start))
		}
	}()

	cfg, valid := feed.Config(im.opts.DefaultMethod)
	if !valid {
		im.logger.Warn("認識できないアイキャッチ画像の取得方法のため画像を設定しません",
			slog.Int64("feed_id", feed.ID),
			slog.String("featuredimage", derefString(feed.Meta.FeaturedImage)),
		)
	}

	if err := im.ssrfGuard.ValidateURL(feed.URL); err != nil {
		im.logger.Error("SSRF検証に失敗しました",
			slog.Int64("feed_id", feed.ID),
			slog.String("feed_url", feed.URL),
			slog.String("error", err.Error()),
		)
		st.stop(feed, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		im.finish(ctx, feed, cronID, metrics.ResultStopped, feed.ErrorMessage)
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := im.ssrfGuard.NewSafeClient(im.opts.Timeout, im.opts.MaxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if feed.ETag != "" {
		req.Header.Set("If-None-Match", feed.ETag)
	}
	if feed.LastModified != "" {
		req.Header.Set("If-Modified-Since", feed.LastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		im.logger.Error("HTTPリクエストに失敗しました",
			slog.Int64("feed_id", feed.ID),
			slog.String("feed_url", feed.URL),
			slog.String("error", err.Error()),
		)
		st.retryLater(feed, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()), 0)
		im.finish(ctx, feed, cronID, metrics.ResultBackoff, feed.ErrorMessage)
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if im.metrics != nil {
		im.metrics.RecordHTTPStatus(resp.StatusCode)
	}

	switch Classify(resp.StatusCode) {
	case OutcomeNotModified:
		im.logger.Info("フィードは未変更です（304）",
			slog.Int64("feed_id", feed.ID),
			slog.String("feed_url", feed.URL),
		)
		st.succeed(feed, cfg.PollIntervalMinutes)
		return im.finishProcessed(ctx, feed, cronID, metrics.ResultNotModified, Summary{})

	case OutcomeGone:
		reason := fmt.Sprintf("HTTPステータス %d によりインポートを停止しました", resp.StatusCode)
		im.logger.Warn("フィードのインポートを停止します",
			slog.Int64("feed_id", feed.ID),
			slog.String("feed_url", feed.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		st.stop(feed, reason)
		return im.finish(ctx, feed, cronID, metrics.ResultStopped, reason)

	case OutcomeRetryLater:
		reason := fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", resp.StatusCode)
		im.logger.Warn("フィードのインポートにバックオフを適用します",
			slog.Int64("feed_id", feed.ID),
			slog.String("feed_url", feed.URL),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", feed.ConsecutiveErrors+1),
		)
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"), start)
		st.retryLater(feed, reason, retryAfter)
		return im.finish(ctx, feed, cronID, metrics.ResultBackoff, reason)

	case OutcomeFetched:
	default:
		reason := fmt.Sprintf("予期しないHTTPステータス: %d", resp.StatusCode)
		im.logger.Warn("予期しないHTTPステータスコード",
			slog.Int64("feed_id", feed.ID),
			slog.Int("http_status", resp.StatusCode),
		)
		st.retryLater(feed, reason, 0)
		return im.finish(ctx, feed, cronID, metrics.ResultBackoff, reason)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.opts.MaxBodySize))
	if err != nil {
		reason := fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error())
		st.retryLater(feed, reason, 0)
		return im.finish(ctx, feed, cronID, metrics.ResultBackoff, reason)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		feed.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		feed.LastModified = lastMod
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		im.logger.Error("フィードのパースに失敗しました",
			slog.Int64("feed_id", feed.ID),
			slog.String("feed_url", feed.URL),
			slog.String("error", err.Error()),
		)
		st.parseFailed(feed, err.Error())
		// パース失敗はカウントして継続するためエラーとして返さない
		_ = im.finish(ctx, feed, cronID, metrics.ResultParseFailure, feed.ErrorMessage)
		return nil
	}

	if title := normalizeTitle(parsed.Title); feed.Title == "" && title != "" {
		feed.Title = title
	}

	summary := Summary{Items: len(parsed.Items)}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		im.importItem(ctx, feed, cfg, cronID, item, &summary)
	}

	st.succeed(feed, cfg.PollIntervalMinutes)
	if im.metrics != nil {
		im.metrics.RecordPostsImported(summary.Imported)
	}
	if err := im.finishProcessed(ctx, feed, cronID, metrics.ResultOK, summary); err != nil {
		return err
	}

	im.logger.Info("フィードのインポートが完了しました",
		slog.Int64("feed_id", feed.ID),
		slog.String("feed_url", feed.URL),
		slog.Int("items_total", summary.Items),
		slog.Int("posts_imported", summary.Imported),
		slog.Int("duplicates", summary.Duplicates),
		slog.Int("images", summary.Images),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// importItem は記事1件を投稿として取り込み、アイキャッチ画像を1回だけ決定する。
func (im *Importer) importItem(ctx context.Context, feed *model.Feed, cfg model.FeedConfig, cronID int64, item *gofeed.Item, summary *Summary) {
	post := convertItem(item, cfg)
	if post.GUID == "" {
		summary.Failed++
		im.record(ctx, feed.ID, cronID, model.LogTypePostFailed, map[string]any{
			"title":  post.Title,
			"reason": "missing guid and link",
		})
		return
	}

	dup, err := im.isDuplicate(ctx, feed.ID, post)
	if err != nil {
		summary.Failed++
		im.logger.Error("重複判定に失敗しました",
			slog.Int64("feed_id", feed.ID),
			slog.String("guid", post.GUID),
			slog.String("error", err.Error()),
		)
		im.record(ctx, feed.ID, cronID, model.LogTypePostFailed, map[string]any{
			"guid":   post.GUID,
			"reason": err.Error(),
		})
		return
	}
	if dup {
		summary.Duplicates++
		im.record(ctx, feed.ID, cronID, model.LogTypeDuplicateSkipped, map[string]any{
			"guid":  post.GUID,
			"title": post.Title,
		})
		return
	}

	post.FeedID = feed.ID
	post.Content = im.sanitizer.Sanitize(post.Content)
	if err := im.postRepo.Create(ctx, post); err != nil {
		summary.Failed++
		im.logger.Error("投稿の作成に失敗しました",
			slog.Int64("feed_id", feed.ID),
			slog.String("guid", post.GUID),
			slog.String("error", err.Error()),
		)
		im.record(ctx, feed.ID, cronID, model.LogTypePostFailed, map[string]any{
			"guid":   post.GUID,
			"reason": err.Error(),
		})
		return
	}
	summary.Imported++
	im.record(ctx, feed.ID, cronID, model.LogTypePostImported, map[string]any{
		"post_id": post.ID,
		"title":   post.Title,
		"link":    post.Link,
	})

	if featureimage.Select(cfg) == featureimage.StrategyNone {
		return
	}

	// 画像の抽出はサニタイズ前の記事本文に対して行う
	result := im.resolver.Apply(ctx, post.ID, featureimage.NewGofeedItem(item), cfg)
	info := map[string]any{"post_id": post.ID}
	if result.ImageURL != "" {
		info["image_url"] = result.ImageURL
	}
	logType := model.LogTypeImageNone
	if result.Assigned() {
		summary.Images++
		info["attachment_id"] = result.AttachmentID
		logType = model.LogTypeImageAssigned
		if result.UsedDefault {
			logType = model.LogTypeImageDefault
		}
	}
	im.record(ctx, feed.ID, cronID, logType, info)
}

// isDuplicate はGUID、次にリンクで既存の投稿を確認する。
func (im *Importer) isDuplicate(ctx context.Context, feedID int64, post *model.Post) (bool, error) {
	exists, err := im.postRepo.ExistsByGUID(ctx, feedID, post.GUID)
	if err != nil || exists {
		return exists, err
	}
	if post.Link == "" || post.Link == post.GUID {
		return false, nil
	}
	return im.postRepo.ExistsByLink(ctx, feedID, post.Link)
}

// finish はエラー時のフィード状態を保存し、feed_errorログを記録する。
func (im *Importer) finish(ctx context.Context, feed *model.Feed, cronID int64, result, reason string) error {
	if im.metrics != nil {
		im.metrics.RecordFeedImport(result)
	}
	im.record(ctx, feed.ID, cronID, model.LogTypeFeedError, map[string]any{
		"result": result,
		"error":  reason,
	})
	if err := im.feedRepo.UpdateFetchState(ctx, feed); err != nil {
		im.logger.Error("フィード状態の更新に失敗しました",
			slog.Int64("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// finishProcessed は成功時のフィード状態を保存し、feed_processedログを記録する。
func (im *Importer) finishProcessed(ctx context.Context, feed *model.Feed, cronID int64, result string, summary Summary) error {
	if im.metrics != nil {
		im.metrics.RecordFeedImport(result)
	}
	info := summary.info()
	info["result"] = result
	im.record(ctx, feed.ID, cronID, model.LogTypeFeedProcessed, info)
	if err := im.feedRepo.UpdateFetchState(ctx, feed); err != nil {
		im.logger.Error("フィード状態の更新に失敗しました",
			slog.Int64("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// record は活動ログを1件記録する。記録の失敗はインポートを中断しない。
func (im *Importer) record(ctx context.Context, feedID, cronID int64, logType model.LogType, info map[string]any) {
	rec := &model.LogRecord{
		FeedID:  feedID,
		CronID:  cronID,
		LogAt:   im.now().Unix(),
		LogType: logType,
		Info:    info,
	}
	if err := im.logRepo.Insert(ctx, rec); err != nil {
		im.logger.Error("活動ログの記録に失敗しました",
			slog.Int64("feed_id", feedID),
			slog.String("log_type", string(logType)),
			slog.String("error", err.Error()),
		)
	}
}

// convertItem はgofeedの記事を投稿に変換する（FeedIDと本文のサニタイズは呼び出し側で行う）。
func convertItem(item *gofeed.Item, cfg model.FeedConfig) *model.Post {
	post := &model.Post{
		GUID:    strings.TrimSpace(item.GUID),
		Title:   normalizeTitle(item.Title),
		Link:    strings.TrimSpace(item.Link),
		Content: item.Content,
		Status:  cfg.PostStatus,
	}
	if post.Content == "" {
		post.Content = item.Description
	}

	if item.Author != nil {
		post.Author = item.Author.Name
	}
	if post.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
		post.Author = item.Authors[0].Name
	}
	if post.Author == "" {
		post.Author = cfg.Author
	}

	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		post.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		post.PublishedAt = &t
	}

	// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
	if post.Link == "" && (strings.HasPrefix(post.GUID, "http://") || strings.HasPrefix(post.GUID, "https://")) {
		post.Link = post.GUID
	}
	if post.GUID == "" {
		post.GUID = post.Link
	}
	return post
}

// normalizeTitle は前後の空白を除き、NFCに正規化する。
// 濁点が分離したNFDのかな（macOSで作られた記事など）を合成済みの文字にそろえる。
func normalizeTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
