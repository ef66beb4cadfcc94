package model

// LogType はインポートログの種別を表す。
type LogType string

const (
	LogTypePostImported     LogType = "post_imported"
	LogTypeDuplicateSkipped LogType = "duplicate_skipped"
	LogTypePostFailed       LogType = "post_failed"
	LogTypeImageAssigned    LogType = "image_assigned"
	LogTypeImageDefault     LogType = "image_default"
	LogTypeImageNone        LogType = "image_none"
	LogTypeFeedError        LogType = "feed_error"
	LogTypeFeedProcessed    LogType = "feed_processed"
)

// LogRecord はインポート処理の活動記録（logsテーブルの1行）を表す。
// CronIDはインポート実行の開始時刻、LogAtは記録時刻（いずれもUNIX秒）。
type LogRecord struct {
	ID      int64
	FeedID  int64
	CronID  int64
	LogAt   int64
	LogType LogType
	Info    map[string]any
}
