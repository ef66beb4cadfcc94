// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/autoblog/internal/model"
)

// FeedRepository はフィードデータの永続化インターフェース。
type FeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Feed, error)

	// ListByScope はスコープ内のフィードをID昇順で返す。
	// blogIDが0の場合はサイト全体（ネットワークスコープ）を対象とする。
	ListByScope(ctx context.Context, siteID, blogID int64) ([]*model.Feed, error)

	// Create はフィードを作成し、採番されたIDをfeed.IDに設定する。
	Create(ctx context.Context, feed *model.Feed) error

	// UpdateMeta はフィードごとの設定（feed_meta）を更新する。
	UpdateMeta(ctx context.Context, feedID int64, meta model.FeedMeta) error

	// ListDueForCheck はインポート対象のフィードを取得する。
	// next_check_at <= now() かつ fetch_status = 'active' のフィードを
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForCheck(ctx context.Context) ([]*model.Feed, error)

	// UpdateFetchState はフィードのフェッチ状態を更新する。
	// fetch_status、consecutive_errors、error_message、next_check_at、etag、last_modifiedを更新する。
	UpdateFetchState(ctx context.Context, feed *model.Feed) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// ExistsByGUID はfeed_idとguidで投稿の存在を確認する。重複判定の最優先手段。
	ExistsByGUID(ctx context.Context, feedID int64, guid string) (bool, error)

	// ExistsByLink はfeed_idとlinkで投稿の存在を確認する。
	ExistsByLink(ctx context.Context, feedID int64, link string) (bool, error)

	// Create は投稿を作成し、採番されたIDをpost.IDに設定する。
	Create(ctx context.Context, post *model.Post) error

	// SetFeaturedImage は投稿のアイキャッチ画像を設定する。
	SetFeaturedImage(ctx context.Context, postID, attachmentID int64) error
}

// AttachmentRepository はメディアライブラリの永続化インターフェース。
type AttachmentRepository interface {
	// Create は添付ファイルを保存し、採番されたIDをattachment.IDに設定する。
	Create(ctx context.Context, attachment *model.Attachment) error

	// FindByID は添付ファイルのメタデータを取得する（Dataは含まない）。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Attachment, error)

	// FindByGUID は配信用にデータを含めて添付ファイルを取得する。
	// 見つからない場合はnilを返す。
	FindByGUID(ctx context.Context, guid string) (*model.Attachment, error)
}

// LogRepository はインポートログの永続化インターフェース。
type LogRepository interface {
	// Insert はログレコードを追加し、採番されたIDをrecord.IDに設定する。
	Insert(ctx context.Context, record *model.LogRecord) error

	// ListSince は指定フィードのcron_id >= sinceのログをlog_at降順で返す。
	ListSince(ctx context.Context, feedIDs []int64, since int64) ([]*model.LogRecord, error)
}
