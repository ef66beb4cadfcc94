// Package importer はフィードから投稿を取り込むバックグラウンドジョブを提供する。
// スケジューラ、インポーター、リトライ/バックオフ戦略を含む。
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/autoblog/internal/model"
	"github.com/hitoshi/autoblog/internal/repository"
)

// DefaultMaxConcurrency は同時にインポートするフィード数の既定値。
const DefaultMaxConcurrency = 5

// FeedImporterService はフィード1件のインポートを実行するインターフェース。
type FeedImporterService interface {
	// Import は指定フィードを取り込み、結果に応じてフィード状態を更新する。
	Import(ctx context.Context, feed *model.Feed) error
}

// CycleResult は1回のインポートサイクルの集計。
type CycleResult struct {
	Due     int // チェック時刻を迎えていたフィード数
	Failed  int // Importがエラーを返したフィード数
	Skipped int // キャンセルにより着手しなかったフィード数
}

// Scheduler はチェック時刻を迎えたフィードを定期的に取り出し、
// 同時実行数を制限しながらインポートする。
type Scheduler struct {
	feedRepo       repository.FeedRepository
	importer       FeedImporterService
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerを生成する。
// maxConcurrencyが0以下の場合はDefaultMaxConcurrencyを使う。
func NewScheduler(
	feedRepo repository.FeedRepository,
	importer FeedImporterService,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Scheduler{
		feedRepo:       feedRepo,
		importer:       importer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は起動直後とinterval経過ごとにサイクルを実行する。ctxがキャンセルされるまでブロックする。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("インポートスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("インポートサイクルの実行に失敗しました",
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("インポートスケジューラを停止しました")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce はチェック時刻を迎えたフィードを取得してインポートする。
// 個々のフィードの失敗はサイクルを止めず、CycleResult.Failedに数える。
// ctxがキャンセルされた場合、未着手のフィードはSkippedに数えて終了を待つ。
func (s *Scheduler) RunOnce(ctx context.Context) (CycleResult, error) {
	start := time.Now()

	feeds, err := s.feedRepo.ListDueForCheck(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("インポート対象フィードの取得に失敗: %w", err)
	}

	result := CycleResult{Due: len(feeds)}
	if len(feeds) == 0 {
		s.logger.Info("インポート対象のフィードはありません")
		return result, nil
	}

	s.logger.Info("インポートサイクルを開始します",
		slog.Int("feed_count", len(feeds)),
	)

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for i, f := range feeds {
		if ctx.Err() != nil {
			result.Skipped = len(feeds) - i
			break
		}
		g.Go(func() error {
			if err := s.importer.Import(ctx, f); err != nil {
				failed.Add(1)
				s.logger.Error("フィードのインポートに失敗しました",
					slog.Int64("feed_id", f.ID),
					slog.String("feed_url", f.URL),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	result.Failed = int(failed.Load())

	s.logger.Info("インポートサイクルが完了しました",
		slog.Int("feed_count", result.Due),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}
