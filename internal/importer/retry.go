package importer

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/autoblog/internal/model"
)

// Outcome はフィード取得のHTTPステータスの分類。
type Outcome int

const (
	// OutcomeFetched は本文を取り込む（200）。
	OutcomeFetched Outcome = iota
	// OutcomeNotModified は前回から変更なし（304）。
	OutcomeNotModified
	// OutcomeGone はフィードが存在しないかアクセスを拒否された（401/403/404/410）。
	OutcomeGone
	// OutcomeRetryLater は時間をおいて再試行する（429/5xx）。
	OutcomeRetryLater
	// OutcomeUnexpected は上記以外のステータス。
	OutcomeUnexpected
)

// Classify はHTTPステータスコードを分類する。
func Classify(statusCode int) Outcome {
	switch statusCode {
	case http.StatusOK:
		return OutcomeFetched
	case http.StatusNotModified:
		return OutcomeNotModified
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return OutcomeGone
	case http.StatusTooManyRequests:
		return OutcomeRetryLater
	}
	if statusCode >= 500 {
		return OutcomeRetryLater
	}
	return OutcomeUnexpected
}

// RetryPolicy は取得失敗時の次回チェック時刻の決め方。
type RetryPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// ParseFailureLimit回連続でパースに失敗したフィードは停止する
	ParseFailureLimit int
}

// DefaultRetryPolicy は初回30分、最大12時間、パース失敗10回で停止するポリシーを返す。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialBackoff:    30 * time.Minute,
		MaxBackoff:        12 * time.Hour,
		ParseFailureLimit: 10,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = max(def.MaxBackoff, p.InitialBackoff)
	}
	if p.ParseFailureLimit <= 0 {
		p.ParseFailureLimit = def.ParseFailureLimit
	}
	return p
}

// Backoff はattempt回目（0始まり）の失敗後の待ち時間を返す。倍々に増え、MaxBackoffで頭打ちになる。
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.InitialBackoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return min(delay, p.MaxBackoff)
}

// parseRetryAfter はRetry-Afterヘッダー（秒数またはHTTP日付）を待ち時間に変換する。
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// feedState は1回のインポートで行うフィード状態の遷移。
// 時刻はインポート開始時刻に固定する。
type feedState struct {
	policy RetryPolicy
	now    time.Time
}

// stop はフィードを停止する。スケジューラの対象から外れる。
func (s feedState) stop(feed *model.Feed, reason string) {
	feed.FetchStatus = model.FetchStatusStopped
	feed.ErrorMessage = reason
	feed.UpdatedAt = s.now
}

// retryLater は連続エラー回数を増やして次回チェックを後ろにずらす。
// サーバーがRetry-Afterで指定した待ち時間の方が長ければそちらを使う。
func (s feedState) retryLater(feed *model.Feed, reason string, retryAfter time.Duration) {
	feed.ConsecutiveErrors++
	feed.ErrorMessage = reason
	delay := max(s.policy.Backoff(feed.ConsecutiveErrors-1), min(retryAfter, s.policy.MaxBackoff))
	feed.NextCheckAt = s.now.Add(delay)
	feed.UpdatedAt = s.now
}

// succeed はエラー状態をクリアし、ポーリング間隔後に次回チェックを設定する。
func (s feedState) succeed(feed *model.Feed, intervalMinutes int) {
	if intervalMinutes <= 0 {
		intervalMinutes = model.DefaultPollIntervalMinutes
	}
	feed.ConsecutiveErrors = 0
	feed.ErrorMessage = ""
	feed.NextCheckAt = s.now.Add(time.Duration(intervalMinutes) * time.Minute)
	feed.UpdatedAt = s.now
}

// parseFailed はパース失敗を数え、上限に達したフィードを停止する。
func (s feedState) parseFailed(feed *model.Feed, reason string) {
	s.retryLater(feed, fmt.Sprintf("パース失敗 (%d回連続): %s", feed.ConsecutiveErrors+1, reason), 0)
	if feed.ConsecutiveErrors >= s.policy.ParseFailureLimit {
		s.stop(feed, fmt.Sprintf("パース失敗が%d回連続したためインポートを停止しました: %s", feed.ConsecutiveErrors, reason))
	}
}
