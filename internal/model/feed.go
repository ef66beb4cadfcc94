// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Feed は購読中のRSS/Atomフィードを表す。
// 1フィードは1つのサイト（site_id）と1つのブログ（blog_id）に属する。
type Feed struct {
	ID                int64
	SiteID            int64
	BlogID            int64
	Title             string
	URL               string
	Meta              FeedMeta
	ETag              string
	LastModified      string
	FetchStatus       FetchStatus
	ConsecutiveErrors int
	ErrorMessage      string
	NextCheckAt       time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FetchStatus はフィードのフェッチ状態を表す。
type FetchStatus string

const (
	// FetchStatusActive はアクティブなフェッチ状態。
	FetchStatusActive FetchStatus = "active"
	// FetchStatusStopped は停止されたフェッチ状態。
	FetchStatusStopped FetchStatus = "stopped"
)

// FeedMeta はfeedsテーブルのfeed_meta列（JSON）に保存されるフィードごとの設定。
// キー名は既存データとの互換のため固定されている。
type FeedMeta struct {
	// FeaturedImage はアイキャッチ画像の取得方法。nilの場合は未設定（デフォルト方式を使用）。
	FeaturedImage *string `json:"featuredimage,omitempty"`
	// FeaturedDefault はデフォルトのアイキャッチ画像（添付ファイルID）。0は未設定。
	FeaturedDefault     int64  `json:"featureddefault,omitempty"`
	PollIntervalMinutes int    `json:"poll_interval_minutes,omitempty"`
	Author              string `json:"author,omitempty"`
	PostStatus          string `json:"post_status,omitempty"`
}

// FeaturedImageMethod はアイキャッチ画像の取得方法を表す。
type FeaturedImageMethod string

const (
	// FeaturedImageNone はアイキャッチ画像を取り込まない。
	FeaturedImageNone FeaturedImageMethod = ""
	// FeaturedImageMediaThumbnail はmedia:thumbnailタグの画像を使う。
	FeaturedImageMediaThumbnail FeaturedImageMethod = "MEDIA"
	// FeaturedImageFirst は本文中の最初の画像を使う。
	FeaturedImageFirst FeaturedImageMethod = "ASC"
	// FeaturedImageLast は本文中の最後の画像を使う。
	FeaturedImageLast FeaturedImageMethod = "DESC"
)

// FeaturedImageMethods は設定画面に表示する順序で全ての取得方法を返す。
func FeaturedImageMethods() []FeaturedImageMethod {
	return []FeaturedImageMethod{
		FeaturedImageNone,
		FeaturedImageMediaThumbnail,
		FeaturedImageFirst,
		FeaturedImageLast,
	}
}

// ParseFeaturedImageMethod は文字列を取得方法に変換する。
// 前後の空白は無視する。認識できない値の場合はFeaturedImageNoneとfalseを返す。
func ParseFeaturedImageMethod(s string) (FeaturedImageMethod, bool) {
	m := FeaturedImageMethod(strings.TrimSpace(s))
	for _, known := range FeaturedImageMethods() {
		if m == known {
			return m, true
		}
	}
	return FeaturedImageNone, false
}

// FeedConfig はインポート処理が参照する型付きのフィード設定。
// FeedMetaからロード時に1回だけ組み立て、以降は読み取り専用として扱う。
type FeedConfig struct {
	FeedID              int64
	FeaturedImageMethod FeaturedImageMethod
	DefaultImageID      int64 // 0は未設定
	FeedBaseURL         string
	Author              string
	PostStatus          string
	PollIntervalMinutes int
}

// デフォルト値
const (
	DefaultPollIntervalMinutes = 60
	DefaultPostStatus          = "publish"
)

// Config はフィードの型付き設定を組み立てる。
// featuredimageが未設定の場合はdefaultMethodを使用する。
// 認識できない取得方法の場合は第2戻り値にfalseを返し、FeaturedImageNoneとして扱う。
func (f *Feed) Config(defaultMethod FeaturedImageMethod) (FeedConfig, bool) {
	cfg := FeedConfig{
		FeedID:              f.ID,
		FeaturedImageMethod: defaultMethod,
		DefaultImageID:      f.Meta.FeaturedDefault,
		FeedBaseURL:         f.URL,
		Author:              f.Meta.Author,
		PostStatus:          f.Meta.PostStatus,
		PollIntervalMinutes: f.Meta.PollIntervalMinutes,
	}
	if cfg.DefaultImageID < 0 {
		cfg.DefaultImageID = 0
	}
	if cfg.PostStatus == "" {
		cfg.PostStatus = DefaultPostStatus
	}
	if cfg.PollIntervalMinutes <= 0 {
		cfg.PollIntervalMinutes = DefaultPollIntervalMinutes
	}

	valid := true
	if f.Meta.FeaturedImage != nil {
		cfg.FeaturedImageMethod, valid = ParseFeaturedImageMethod(*f.Meta.FeaturedImage)
	}
	return cfg, valid
}
