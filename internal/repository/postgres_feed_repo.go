package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/autoblog/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

const feedColumns = `id, site_id, blog_id, title, url, feed_meta,
		        etag, last_modified, fetch_status, consecutive_errors,
		        error_message, next_check_at, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(s rowScanner) (*model.Feed, error) {
	feed := &model.Feed{}
	var meta []byte
	var etag, lastModified, errorMessage sql.NullString

	if err := s.Scan(
		&feed.ID, &feed.SiteID, &feed.BlogID, &feed.Title, &feed.URL, &meta,
		&etag, &lastModified, &feed.FetchStatus, &feed.ConsecutiveErrors,
		&errorMessage, &feed.NextCheckAt, &feed.CreatedAt, &feed.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m, err := decodeFeedMeta(meta)
	if err != nil {
		return nil, fmt.Errorf("feed_metaのデコードに失敗しました (feed_id=%d): %w", feed.ID, err)
	}
	feed.Meta = m
	feed.ETag = nullStringValue(etag)
	feed.LastModified = nullStringValue(lastModified)
	feed.ErrorMessage = nullStringValue(errorMessage)
	return feed, nil
}

// decodeFeedMeta はfeed_meta列をデコードする。空の場合はゼロ値を返す。
func decodeFeedMeta(raw []byte) (model.FeedMeta, error) {
	var meta model.FeedMeta
	if len(raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return model.FeedMeta{}, err
	}
	return meta, nil
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByID(ctx context.Context, id int64) (*model.Feed, error) {
	feed, err := scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	return feed, nil
}

// ListByScope はスコープ内のフィードをID昇順で返す。
func (r *PostgresFeedRepo) ListByScope(ctx context.Context, siteID, blogID int64) ([]*model.Feed, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if blogID == 0 {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+feedColumns+` FROM feeds WHERE site_id = $1 ORDER BY id ASC`, siteID)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+feedColumns+` FROM feeds WHERE site_id = $1 AND blog_id = $2 ORDER BY id ASC`,
			siteID, blogID)
	}
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

func collectFeeds(rows *sql.Rows) ([]*model.Feed, error) {
	var feeds []*model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("フィードの読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィード一覧の走査に失敗しました: %w", err)
	}
	return feeds, nil
}

// Create はフィードを作成する。
func (r *PostgresFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	meta, err := json.Marshal(feed.Meta)
	if err != nil {
		return fmt.Errorf("feed_metaのエンコードに失敗しました: %w", err)
	}
	if feed.FetchStatus == "" {
		feed.FetchStatus = model.FetchStatusActive
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO feeds (site_id, blog_id, title, url, feed_meta, fetch_status, next_check_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 RETURNING id, next_check_at, created_at, updated_at`,
		feed.SiteID, feed.BlogID, feed.Title, feed.URL, meta, feed.FetchStatus,
	).Scan(&feed.ID, &feed.NextCheckAt, &feed.CreatedAt, &feed.UpdatedAt)
	if err != nil {
		return fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateMeta はフィードごとの設定を更新する。
func (r *PostgresFeedRepo) UpdateMeta(ctx context.Context, feedID int64, meta model.FeedMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("feed_metaのエンコードに失敗しました: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE feeds SET feed_meta = $2, updated_at = now() WHERE id = $1`,
		feedID, raw,
	)
	if err != nil {
		return fmt.Errorf("フィード設定の更新に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullInt64 は0をsql.NullInt64（NULL）に変換する。
func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// ListDueForCheck はインポート対象のフィードを取得する。
func (r *PostgresFeedRepo) ListDueForCheck(ctx context.Context) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+feedColumns+`
		 FROM feeds
		 WHERE next_check_at <= now()
		   AND fetch_status = 'active'
		 ORDER BY next_check_at ASC
		 FOR UPDATE SKIP LOCKED`,
	)
	if err != nil {
		return nil, fmt.Errorf("インポート対象フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

// UpdateFetchState はフィードのフェッチ状態を更新する。
func (r *PostgresFeedRepo) UpdateFetchState(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET
		    title = CASE WHEN $8 = '' THEN title ELSE $8 END,
		    fetch_status = $2,
		    consecutive_errors = $3,
		    error_message = $4,
		    next_check_at = $5,
		    etag = $6,
		    last_modified = $7,
		    updated_at = now()
		 WHERE id = $1`,
		feed.ID,
		feed.FetchStatus,
		feed.ConsecutiveErrors,
		nullString(feed.ErrorMessage),
		feed.NextCheckAt,
		nullString(feed.ETag),
		nullString(feed.LastModified),
		feed.Title,
	)
	if err != nil {
		return fmt.Errorf("フェッチ状態の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
