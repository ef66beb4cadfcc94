package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/autoblog/internal/config"
	"github.com/hitoshi/autoblog/internal/dashboard"
	"github.com/hitoshi/autoblog/internal/database"
	"github.com/hitoshi/autoblog/internal/featureimage"
	"github.com/hitoshi/autoblog/internal/feed"
	"github.com/hitoshi/autoblog/internal/handler"
	"github.com/hitoshi/autoblog/internal/importer"
	"github.com/hitoshi/autoblog/internal/logger"
	"github.com/hitoshi/autoblog/internal/media"
	"github.com/hitoshi/autoblog/internal/metrics"
	"github.com/hitoshi/autoblog/internal/middleware"
	"github.com/hitoshi/autoblog/internal/repository"
	"github.com/hitoshi/autoblog/internal/security"
	"github.com/hitoshi/autoblog/internal/worker/cleanup"
)

// cleanupInterval はログクリーンアップジョブの実行間隔。
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandImport:
		return runImportOnce(cfg)
	case CommandMigrate:
		action, err := ParseMigrateArgs(args[1:])
		if err != nil {
			return err
		}
		return runMigrate(cfg, action)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newMediaStore はメディアライブラリを構築する。
// APIの画像取り込みとワーカーのアイキャッチ画像取得で同じ設定を使う。
func newMediaStore(cfg *config.Config, db *sql.DB, guard *security.SSRFGuard, l *slog.Logger) *media.Store {
	return media.NewStore(
		repository.NewPostgresAttachmentRepo(db),
		guard,
		media.Options{
			BaseURL:      cfg.BaseURL,
			FetchTimeout: cfg.ImageFetchTimeout,
			MaxSize:      cfg.ImageMaxSize,
		},
		l.With(slog.String("component", "media")),
	)
}

// rateLimiterConfig はRATE_LIMIT_GENERAL（req/min）をリミッター設定に変換する。
func rateLimiterConfig(perMinute int) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if perMinute > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(perMinute) / 60.0)
		rlCfg.GeneralBurst = perMinute
	}
	return rlCfg
}

// newRegistry はプロセス・ランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	l := slog.Default()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	l.Info("database connection established")

	// 2. リポジトリとセキュリティサービスの初期化
	feedRepo := repository.NewPostgresFeedRepo(db)
	logRepo := repository.NewPostgresLogRepo(db)
	ssrfGuard := security.NewSSRFGuard()

	// 3. ドメインサービスの初期化
	mediaStore := newMediaStore(cfg, db, ssrfGuard, l)
	feedService := feed.NewFeedService(
		feedRepo,
		feed.NewFeedDetector(ssrfGuard),
		mediaStore,
		cfg.FeaturedImageDefaultMethod,
		l.With(slog.String("component", "feed")),
	)
	dashboardService := dashboard.NewService(feedRepo, logRepo, dashboard.Options{
		Days:       cfg.DashboardDays,
		Location:   cfg.DashboardLocation,
		DateFormat: cfg.DashboardDateFormat,
		TimeFormat: cfg.DashboardTimeFormat,
	})

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg.RateLimitGeneral), l)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:           l,
		HealthChecker:    db,
		RateLimiter:      rateLimiter,
		MetricsHandler:   metrics.Handler(newRegistry()),
		DefaultSiteID:    cfg.SiteID,
		FeedService:      feedService,
		MediaService:     mediaStore,
		DashboardService: dashboardService,
	})

	// 5. HTTPサーバーの起動
	// 画像取り込みAPIは大きな画像の取得を待つため、書き込みタイムアウトを画像取得に合わせる
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ImageFetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		l.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	l.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、インポートスケジューラとログクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	l := slog.Default()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	l.Info("database connection established (worker)")

	// 2. インポーターとメトリクスの初期化
	reg := newRegistry()
	scheduler := newScheduler(cfg, db, metrics.NewCollector(reg), l)

	// 3. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, l.With(slog.String("component", "cleanup")), cfg.LogRetentionDays)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. メトリクス公開用のHTTPサーバー
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}()

	l.Info("worker starting",
		slog.Duration("fetch_interval", cfg.FetchInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
		slog.Int("log_retention_days", cleanupJob.RetentionDays),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.Start(ctx, cleanupInterval)

	// インポートスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.FetchInterval)

	l.Info("worker stopped gracefully")
	return nil
}

// newScheduler はインポートスケジューラと、その下のインポーター・アイキャッチ画像の決定処理を構築する。
func newScheduler(cfg *config.Config, db *sql.DB, collector *metrics.Collector, l *slog.Logger) *importer.Scheduler {
	feedRepo := repository.NewPostgresFeedRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	logRepo := repository.NewPostgresLogRepo(db)

	ssrfGuard := security.NewSSRFGuard()
	mediaStore := newMediaStore(cfg, db, ssrfGuard, l)
	resolver := featureimage.NewResolver(
		mediaStore, mediaStore, postRepo, collector,
		l.With(slog.String("component", "featureimage")),
	)
	imp := importer.NewImporter(
		feedRepo, postRepo, logRepo, resolver, security.NewContentSanitizer(), ssrfGuard, collector,
		l.With(slog.String("component", "importer")),
		importer.Options{
			Timeout:       cfg.FetchTimeout,
			MaxBodySize:   cfg.FetchMaxSize,
			DefaultMethod: cfg.FeaturedImageDefaultMethod,
		},
	)
	return importer.NewScheduler(feedRepo, imp, l, cfg.FetchMaxConcurrent)
}

// runImportOnce はチェック時刻を迎えたフィードを1回だけインポートして終了する。
// 外部のcronから起動する運用のためのサブコマンド。
func runImportOnce(cfg *config.Config) error {
	l := slog.Default()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler := newScheduler(cfg, db, metrics.NewCollector(prometheus.NewRegistry()), l)
	result, err := scheduler.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("import failed for %d of %d feeds", result.Failed, result.Due)
	}
	return nil
}

// runMigrate はマイグレーションの適用、取り消し、状態表示のいずれかを行う。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	l := slog.With(
		slog.String("action", action.Name),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action.Name {
	case "status":
		st, err := database.Status(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration status failed: %w", err)
		}
		latest, err := database.LatestVersion()
		if err != nil {
			return fmt.Errorf("migration status failed: %w", err)
		}
		l.Info("migration status",
			slog.Bool("applied", st.Applied),
			slog.Uint64("version", uint64(st.Version)),
			slog.Uint64("latest_version", uint64(latest)),
			slog.Bool("dirty", st.Dirty),
		)
		return nil
	case "down":
		l.Info("rolling back database migrations", slog.Int("steps", action.Steps))
		if err := database.RollbackMigrations(cfg.DatabaseURL, action.Steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	default:
		l.Info("running database migrations")
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	l.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
