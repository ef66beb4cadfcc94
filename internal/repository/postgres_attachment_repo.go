package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/autoblog/internal/model"
)

// PostgresAttachmentRepo はPostgreSQLを使用したメディアライブラリのリポジトリ。
type PostgresAttachmentRepo struct {
	db *sql.DB
}

// NewPostgresAttachmentRepo はPostgresAttachmentRepoを生成する。
func NewPostgresAttachmentRepo(db *sql.DB) *PostgresAttachmentRepo {
	return &PostgresAttachmentRepo{db: db}
}

// Create は添付ファイルを保存する。
func (r *PostgresAttachmentRepo) Create(ctx context.Context, a *model.Attachment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO attachments (guid, post_id, source_url, file_name, mime_type, size, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		a.GUID, nullInt64(a.PostID), a.SourceURL, a.FileName, a.MimeType, a.Size, a.Data,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("添付ファイルの保存に失敗しました: %w", err)
	}
	return nil
}

// FindByID は添付ファイルのメタデータを取得する。見つからない場合はnilを返す。
func (r *PostgresAttachmentRepo) FindByID(ctx context.Context, id int64) (*model.Attachment, error) {
	a := &model.Attachment{}
	var postID sql.NullInt64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, guid, post_id, source_url, file_name, mime_type, size, created_at
		 FROM attachments WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.GUID, &postID, &a.SourceURL, &a.FileName, &a.MimeType, &a.Size, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("添付ファイルの取得に失敗しました: %w", err)
	}
	a.PostID = postID.Int64
	return a, nil
}

// FindByGUID は配信用にデータを含めて添付ファイルを取得する。見つからない場合はnilを返す。
func (r *PostgresAttachmentRepo) FindByGUID(ctx context.Context, guid string) (*model.Attachment, error) {
	a := &model.Attachment{}
	var postID sql.NullInt64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, guid, post_id, source_url, file_name, mime_type, size, data, created_at
		 FROM attachments WHERE guid = $1`,
		guid,
	).Scan(&a.ID, &a.GUID, &postID, &a.SourceURL, &a.FileName, &a.MimeType, &a.Size, &a.Data, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GUIDによる添付ファイルの取得に失敗しました: %w", err)
	}
	a.PostID = postID.Int64
	return a, nil
}

var _ AttachmentRepository = (*PostgresAttachmentRepo)(nil)
