package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/autoblog/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// ExistsByGUID はfeed_idとguidで投稿の存在を確認する。
func (r *PostgresPostRepo) ExistsByGUID(ctx context.Context, feedID int64, guid string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE feed_id = $1 AND guid = $2)`,
		feedID, guid,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("GUIDによる投稿の検索に失敗しました: %w", err)
	}
	return exists, nil
}

// ExistsByLink はfeed_idとlinkで投稿の存在を確認する。
func (r *PostgresPostRepo) ExistsByLink(ctx context.Context, feedID int64, link string) (bool, error) {
	if link == "" {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE feed_id = $1 AND link = $2)`,
		feedID, link,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("リンクによる投稿の検索に失敗しました: %w", err)
	}
	return exists, nil
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (feed_id, guid, title, link, content, author, status,
		                    featured_image_id, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		post.FeedID, post.GUID, post.Title, nullString(post.Link), post.Content,
		nullString(post.Author), post.Status, nullInt64(post.FeaturedImageID),
		post.PublishedAt,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// SetFeaturedImage は投稿のアイキャッチ画像を設定する。
func (r *PostgresPostRepo) SetFeaturedImage(ctx context.Context, postID, attachmentID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET featured_image_id = $2 WHERE id = $1`,
		postID, attachmentID,
	)
	if err != nil {
		return fmt.Errorf("アイキャッチ画像の設定に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("投稿が見つかりません (post_id=%d)", postID)
	}
	return nil
}

var _ PostRepository = (*PostgresPostRepo)(nil)
