package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/autoblog/internal/model"
)

// PostgresLogRepo はPostgreSQLを使用したインポートログのリポジトリ。
type PostgresLogRepo struct {
	db *sql.DB
}

// NewPostgresLogRepo はPostgresLogRepoを生成する。
func NewPostgresLogRepo(db *sql.DB) *PostgresLogRepo {
	return &PostgresLogRepo{db: db}
}

// Insert はログレコードを追加する。
func (r *PostgresLogRepo) Insert(ctx context.Context, record *model.LogRecord) error {
	info := record.Info
	if info == nil {
		info = map[string]any{}
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("log_infoのエンコードに失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO logs (feed_id, cron_id, log_at, log_type, log_info)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		record.FeedID, record.CronID, record.LogAt, string(record.LogType), raw,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("ログの記録に失敗しました: %w", err)
	}
	return nil
}

// ListSince は指定フィードのcron_id >= sinceのログをlog_at降順で返す。
// feedIDsが空の場合は何も問い合わせずに空を返す。
func (r *PostgresLogRepo) ListSince(ctx context.Context, feedIDs []int64, since int64) ([]*model.LogRecord, error) {
	if len(feedIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, feed_id, cron_id, log_at, log_type, log_info
		 FROM logs
		 WHERE feed_id = ANY($1) AND cron_id >= $2
		 ORDER BY log_at DESC, id DESC`,
		pq.Array(feedIDs), since,
	)
	if err != nil {
		return nil, fmt.Errorf("ログ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []*model.LogRecord
	for rows.Next() {
		rec := &model.LogRecord{}
		var logType string
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.FeedID, &rec.CronID, &rec.LogAt, &logType, &raw); err != nil {
			return nil, fmt.Errorf("ログの読み取りに失敗しました: %w", err)
		}
		rec.LogType = model.LogType(logType)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.Info); err != nil {
				return nil, fmt.Errorf("log_infoのデコードに失敗しました (log_id=%d): %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ログ一覧の走査に失敗しました: %w", err)
	}
	return records, nil
}

var _ LogRepository = (*PostgresLogRepo)(nil)
