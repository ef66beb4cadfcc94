package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/autoblog/internal/model"
	"github.com/hitoshi/autoblog/internal/repository"
)

// ポーリング間隔の許容範囲（分）
const (
	minPollIntervalMinutes = 5
	maxPollIntervalMinutes = 1440
)

// Detector はフィード検出のインターフェース。
type Detector interface {
	Detect(ctx context.Context, inputURL string) (*Detection, error)
}

// AttachmentLookup はメディアライブラリ上の画像の存在確認と表示URLの取得を行う。
type AttachmentLookup interface {
	LookupAttachment(ctx context.Context, id int64) (string, bool, error)
}

// CreateFeedInput はフィード作成時の入力。
type CreateFeedInput struct {
	SiteID              int64
	BlogID              int64
	URL                 string
	Title               string // 空の場合は検出したタイトルを使う
	FeaturedImage       *string
	FeaturedDefault     int64
	PollIntervalMinutes int // 0はデフォルト
	Author              string
	PostStatus          string
}

// ImageOption は設定画面に表示するアイキャッチ画像の取得方法の選択肢。
type ImageOption struct {
	Value    model.FeaturedImageMethod `json:"value"`
	Label    string                    `json:"label"`
	Selected bool                      `json:"selected"`
}

// FeaturedImageSettings はフィードのアイキャッチ画像設定フォームの内容。
type FeaturedImageSettings struct {
	FeedID int64                     `json:"feed_id"`
	Method model.FeaturedImageMethod `json:"method"`
	// Inherited はfeed_metaに設定がなく、サーバーのデフォルト方式を表示していることを示す。
	Inherited       bool          `json:"inherited"`
	Options         []ImageOption `json:"options"`
	DefaultImageID  int64         `json:"default_image_id"`
	DefaultImageURL string        `json:"default_image_url,omitempty"`
}

var methodLabels = map[model.FeaturedImageMethod]string{
	model.FeaturedImageNone:           "Don't import featured image",
	model.FeaturedImageMediaThumbnail: "Use media:thumbnail tag of a feed item",
	model.FeaturedImageFirst:          "Find the first image within content of a feed item",
	model.FeaturedImageLast:           "Find the last image within content of a feed item",
}

// FeedService はフィードの登録と設定管理のサービス層。
type FeedService struct {
	feedRepo      repository.FeedRepository
	detector      Detector
	attachments   AttachmentLookup
	defaultMethod model.FeaturedImageMethod
	logger        *slog.Logger
}

// NewFeedService はFeedServiceの新しいインスタンスを生成する。
// defaultMethodはfeed_metaに取得方法が設定されていないフィードの表示に使う。
func NewFeedService(
	feedRepo repository.FeedRepository,
	detector Detector,
	attachments AttachmentLookup,
	defaultMethod model.FeaturedImageMethod,
	logger *slog.Logger,
) *FeedService {
	return &FeedService{
		feedRepo:      feedRepo,
		detector:      detector,
		attachments:   attachments,
		defaultMethod: defaultMethod,
		logger:        logger,
	}
}

// CreateFeed は入力URLからフィードを検出して登録する。
// 設定値の検証はネットワークアクセスの前に行う。
func (s *FeedService) CreateFeed(ctx context.Context, in CreateFeedInput) (*model.Feed, error) {
	if in.SiteID <= 0 {
		return nil, model.NewInvalidScopeError("site_id")
	}
	if in.BlogID <= 0 {
		return nil, model.NewInvalidScopeError("blog_id")
	}
	if in.PollIntervalMinutes != 0 &&
		(in.PollIntervalMinutes < minPollIntervalMinutes || in.PollIntervalMinutes > maxPollIntervalMinutes) {
		return nil, model.NewInvalidPollIntervalError(in.PollIntervalMinutes)
	}

	meta := model.FeedMeta{
		PollIntervalMinutes: in.PollIntervalMinutes,
		Author:              strings.TrimSpace(in.Author),
		PostStatus:          strings.TrimSpace(in.PostStatus),
	}
	if in.FeaturedImage != nil {
		method, ok := model.ParseFeaturedImageMethod(*in.FeaturedImage)
		if !ok {
			return nil, model.NewInvalidImageMethodError(*in.FeaturedImage)
		}
		v := string(method)
		meta.FeaturedImage = &v
	}
	if err := s.validateDefaultImage(ctx, in.FeaturedDefault); err != nil {
		return nil, err
	}
	meta.FeaturedDefault = in.FeaturedDefault

	detected, err := s.detector.Detect(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = detected.Title
	}
	if title == "" {
		title = detected.FeedURL
	}

	feed := &model.Feed{
		SiteID:      in.SiteID,
		BlogID:      in.BlogID,
		Title:       title,
		URL:         detected.FeedURL,
		Meta:        meta,
		FetchStatus: model.FetchStatusActive,
	}
	if err := s.feedRepo.Create(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの保存に失敗しました: %w", err)
	}

	s.logger.Info("feed created",
		slog.Int64("feed_id", feed.ID),
		slog.Int64("site_id", feed.SiteID),
		slog.Int64("blog_id", feed.BlogID),
		slog.String("url", feed.URL),
	)
	return feed, nil
}

// ListFeeds はスコープ内のフィードを返す。blogIDが0の場合はサイト全体。
func (s *FeedService) ListFeeds(ctx context.Context, siteID, blogID int64) ([]*model.Feed, error) {
	if siteID <= 0 {
		return nil, model.NewInvalidScopeError("site_id")
	}
	if blogID < 0 {
		return nil, model.NewInvalidScopeError("blog_id")
	}
	feeds, err := s.feedRepo.ListByScope(ctx, siteID, blogID)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	return feeds, nil
}

// GetFeed は指定IDのフィードを返す。
func (s *FeedService) GetFeed(ctx context.Context, feedID int64) (*model.Feed, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}
	return feed, nil
}

// FeaturedImageSettings はフィードのアイキャッチ画像設定フォームの内容を返す。
func (s *FeedService) FeaturedImageSettings(ctx context.Context, feedID int64) (*FeaturedImageSettings, error) {
	feed, err := s.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	return s.settingsOf(ctx, feed)
}

// UpdateFeaturedImage はアイキャッチ画像の取得方法とデフォルト画像を更新する。
// defaultImageIDが0の場合はデフォルト画像を解除する。
func (s *FeedService) UpdateFeaturedImage(ctx context.Context, feedID int64, method string, defaultImageID int64) (*FeaturedImageSettings, error) {
	parsed, ok := model.ParseFeaturedImageMethod(method)
	if !ok {
		return nil, model.NewInvalidImageMethodError(method)
	}

	feed, err := s.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if err := s.validateDefaultImage(ctx, defaultImageID); err != nil {
		return nil, err
	}

	v := string(parsed)
	feed.Meta.FeaturedImage = &v
	feed.Meta.FeaturedDefault = defaultImageID
	if err := s.feedRepo.UpdateMeta(ctx, feed.ID, feed.Meta); err != nil {
		return nil, fmt.Errorf("フィード設定の更新に失敗しました: %w", err)
	}

	s.logger.Info("featured image settings updated",
		slog.Int64("feed_id", feed.ID),
		slog.String("method", v),
		slog.Int64("default_image_id", defaultImageID),
	)
	return s.settingsOf(ctx, feed)
}

func (s *FeedService) validateDefaultImage(ctx context.Context, id int64) error {
	if id == 0 {
		return nil
	}
	if id < 0 {
		return model.NewAttachmentNotFoundError(fmt.Sprint(id))
	}
	_, exists, err := s.attachments.LookupAttachment(ctx, id)
	if err != nil {
		return fmt.Errorf("デフォルト画像の確認に失敗しました: %w", err)
	}
	if !exists {
		return model.NewAttachmentNotFoundError(fmt.Sprint(id))
	}
	return nil
}

func (s *FeedService) settingsOf(ctx context.Context, feed *model.Feed) (*FeaturedImageSettings, error) {
	cfg, valid := feed.Config(s.defaultMethod)
	if !valid {
		s.logger.Warn("unrecognized featured image method",
			slog.Int64("feed_id", feed.ID),
			slog.String("method", *feed.Meta.FeaturedImage),
		)
	}

	settings := &FeaturedImageSettings{
		FeedID:         feed.ID,
		Method:         cfg.FeaturedImageMethod,
		Inherited:      feed.Meta.FeaturedImage == nil,
		DefaultImageID: cfg.DefaultImageID,
	}
	for _, m := range model.FeaturedImageMethods() {
		settings.Options = append(settings.Options, ImageOption{
			Value:    m,
			Label:    methodLabels[m],
			Selected: m == cfg.FeaturedImageMethod,
		})
	}

	if cfg.DefaultImageID > 0 {
		displayURL, exists, err := s.attachments.LookupAttachment(ctx, cfg.DefaultImageID)
		if err != nil {
			return nil, fmt.Errorf("デフォルト画像の取得に失敗しました: %w", err)
		}
		if exists {
			settings.DefaultImageURL = displayURL
		}
	}
	return settings, nil
}
