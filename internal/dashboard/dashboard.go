// Package dashboard はインポート活動ログのダッシュボードを提供する。
// 直近の実行ログを実行日ごと、フィードごとにまとめる。
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/autoblog/internal/model"
)

// 既定値
const (
	DefaultDays       = 7
	DefaultDateFormat = "2006-01-02"
	DefaultTimeFormat = "15:04"
)

// FeedLister はスコープ内のフィードを返す。
type FeedLister interface {
	ListByScope(ctx context.Context, siteID, blogID int64) ([]*model.Feed, error)
}

// LogLister は指定フィードのログを返す。
type LogLister interface {
	ListSince(ctx context.Context, feedIDs []int64, since int64) ([]*model.LogRecord, error)
}

// Scope はダッシュボードの対象範囲。BlogIDが0の場合はネットワーク（サイト全体）を表す。
type Scope struct {
	SiteID int64 `json:"site_id"`
	BlogID int64 `json:"blog_id,omitempty"`
}

// IsNetwork はネットワークスコープかどうかを返す。
func (s Scope) IsNetwork() bool {
	return s.BlogID == 0
}

// LogEntry はログ1件の表示用データ。
type LogEntry struct {
	ID      int64          `json:"id"`
	CronID  int64          `json:"cron_id"`
	LogAt   string         `json:"log_at"`
	Type    model.LogType  `json:"log_type"`
	Info    map[string]any `json:"log_info,omitempty"`
	Message string         `json:"message"`
}

// FeedGroup は1日分のうち1フィードのログ。
type FeedGroup struct {
	FeedID int64      `json:"feed_id"`
	Title  string     `json:"title"`
	URL    string     `json:"url"`
	Logs   []LogEntry `json:"logs"`
}

// DayGroup は実行日ごとのログ。FeedsはフィードID昇順。
type DayGroup struct {
	Date  string      `json:"date"`
	Feeds []FeedGroup `json:"feeds"`
}

// Report はダッシュボード全体のデータ。
type Report struct {
	Scope Scope      `json:"scope"`
	Since time.Time  `json:"since"`
	Days  []DayGroup `json:"days"`
}

// Options はダッシュボードの表示設定。
type Options struct {
	Days       int
	Location   *time.Location
	DateFormat string
	TimeFormat string
}

// Service はダッシュボードのデータを組み立てる。
type Service struct {
	feeds FeedLister
	logs  LogLister
	opts  Options
	now   func() time.Time
}

// NewService はServiceを生成する。未設定のオプションは既定値で補う。
func NewService(feeds FeedLister, logs LogLister, opts Options) *Service {
	if opts.Days <= 0 {
		opts.Days = DefaultDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DateFormat == "" {
		opts.DateFormat = DefaultDateFormat
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = DefaultTimeFormat
	}
	return &Service{feeds: feeds, logs: logs, opts: opts, now: time.Now}
}

// Build はスコープ内のフィードの直近のログをまとめる。
// フィードもログもない場合はDaysが空のReportを返す。
func (s *Service) Build(ctx context.Context, scope Scope) (*Report, error) {
	since := s.now().AddDate(0, 0, -s.opts.Days)
	report := &Report{Scope: scope, Since: since, Days: []DayGroup{}}

	feeds, err := s.feeds.ListByScope(ctx, scope.SiteID, scope.BlogID)
	if err != nil {
		return nil, fmt.Errorf("ダッシュボード対象フィードの取得に失敗: %w", err)
	}
	if len(feeds) == 0 {
		return report, nil
	}

	byID := make(map[int64]*model.Feed, len(feeds))
	ids := make([]int64, 0, len(feeds))
	for _, f := range feeds {
		byID[f.ID] = f
		ids = append(ids, f.ID)
	}

	records, err := s.logs.ListSince(ctx, ids, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("ダッシュボードのログ取得に失敗: %w", err)
	}

	report.Days = Group(byID, records, s.opts)
	return report, nil
}

// Group はlog_at降順のログを実行日ごと、フィードごとにまとめる。
// 日付はcron_id（実行開始時刻）を基準にする。同じ日付が離れて現れた場合も
// 先に現れたグループにまとめる。スコープ外のフィードのログは無視する。
func Group(feeds map[int64]*model.Feed, records []*model.LogRecord, opts Options) []DayGroup {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	type dayAcc struct {
		date  string
		feeds map[int64]*FeedGroup
	}
	var order []*dayAcc
	days := make(map[string]*dayAcc)

	for _, rec := range records {
		feed, ok := feeds[rec.FeedID]
		if !ok {
			continue
		}

		date := time.Unix(rec.CronID, 0).In(loc).Format(opts.DateFormat)
		// 同じ日付は上書きせず先のグループに追記する。置き換えるとその日の先のログが消える
		day, ok := days[date]
		if !ok {
			day = &dayAcc{date: date, feeds: make(map[int64]*FeedGroup)}
			days[date] = day
			order = append(order, day)
		}

		group, ok := day.feeds[rec.FeedID]
		if !ok {
			group = &FeedGroup{FeedID: feed.ID, Title: feed.Title, URL: feed.URL}
			day.feeds[rec.FeedID] = group
		}
		group.Logs = append(group.Logs, LogEntry{
			ID:      rec.ID,
			CronID:  rec.CronID,
			LogAt:   time.Unix(rec.LogAt, 0).In(loc).Format(opts.TimeFormat),
			Type:    rec.LogType,
			Info:    rec.Info,
			Message: Describe(rec.LogType, rec.Info),
		})
	}

	result := make([]DayGroup, 0, len(order))
	for _, day := range order {
		ids := make([]int64, 0, len(day.feeds))
		for id := range day.feeds {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		dg := DayGroup{Date: day.date, Feeds: make([]FeedGroup, 0, len(ids))}
		for _, id := range ids {
			dg.Feeds = append(dg.Feeds, *day.feeds[id])
		}
		result = append(result, dg)
	}
	return result
}
