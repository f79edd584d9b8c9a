// Package app はアプリケーションの初期化と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/moodlens/internal/cache"
	"github.com/hitoshi/moodlens/internal/checkin"
	"github.com/hitoshi/moodlens/internal/config"
	"github.com/hitoshi/moodlens/internal/database"
	"github.com/hitoshi/moodlens/internal/insight"
	"github.com/hitoshi/moodlens/internal/logger"
	"github.com/hitoshi/moodlens/internal/metrics"
	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/repository"
	"github.com/hitoshi/moodlens/internal/security"
	"github.com/hitoshi/moodlens/internal/user"
)

// DevSessionID はメモリストア構成で開発用ユーザーに発行するセッションID。
const DevSessionID = "dev-session"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
}

// components はサブコマンド間で共有する依存関係一式。
type components struct {
	cfg    *config.Config
	logger *slog.Logger

	db    *sql.DB // メモリストア構成ではnil
	redis *redis.Client

	users    repository.UserRepository
	sessions repository.SessionRepository
	moods    repository.MoodRepository
	journals repository.JournalRepository
	insights repository.InsightRepository

	registry  *prometheus.Registry
	collector *metrics.Collector

	insightSvc *insight.Service
	checkinSvc *checkin.Service
	userSvc    *user.Service
}

// build は設定に従ってストレージ、キャッシュ、メトリクス、サービスを組み立てる。
func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*components, error) {
	c := &components{cfg: cfg, logger: log}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		store := repository.NewMemoryStore()
		seedDevUser(store, cfg.DevUserID)
		c.users, c.sessions = store.Users(), store.Sessions()
		c.moods, c.journals, c.insights = store.Moods(), store.Journals(), store.Insights()
		log.Info("using in-memory storage",
			slog.String("dev_user_id", cfg.DevUserID),
			slog.String("dev_session_id", DevSessionID),
		)
	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		c.users = repository.NewPostgresUserRepo(db)
		c.sessions = repository.NewPostgresSessionRepo(db)
		c.moods = repository.NewPostgresMoodRepo(db, cfg.LegacyMoodScale)
		c.journals = repository.NewPostgresJournalRepo(db)
		c.insights = repository.NewPostgresInsightRepo(db)
		log.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
			slog.Bool("legacy_mood_scale", cfg.LegacyMoodScale),
		)
	}

	reportCache, err := c.buildCache(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.collector = metrics.NewCollector(c.registry)

	c.insightSvc = insight.NewService(c.moods, c.journals, c.insights, log,
		insight.WithCache(reportCache),
		insight.WithMetrics(c.collector),
		insight.WithLocation(cfg.Location),
		insight.WithTimeout(cfg.InsightTimeout),
	)
	c.checkinSvc = checkin.NewService(c.moods, c.journals, security.NewTextSanitizer(), log,
		checkin.WithInvalidator(c.insightSvc),
		checkin.WithMetrics(c.collector),
		checkin.WithLocation(cfg.Location),
	)
	c.userSvc = user.NewService(c.users, c.sessions, c.insights, c.journals, c.moods, c.insightSvc)

	return c, nil
}

// buildCache はレポートキャッシュを選ぶ。
// Redisが設定されていればRedis、メモリストア構成ではプロセス内キャッシュを使う。
// 複数プロセスで動くPostgres構成でRedisがない場合はキャッシュしない。
func (c *components) buildCache(ctx context.Context) (cache.ReportCache, error) {
	if c.cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.cfg.RedisAddr})
		rc := cache.NewRedis(client, c.cfg.InsightCacheTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.redis = client
		c.logger.Info("report cache: redis", slog.String("addr", c.cfg.RedisAddr))
		return rc, nil
	}
	if c.cfg.StorageDriver == config.StorageMemory {
		return cache.NewMemory(c.cfg.InsightCacheTTL), nil
	}
	return cache.Noop{}, nil
}

// Close は開いた接続を閉じる。
func (c *components) Close() {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Warn("failed to close redis", slog.String("error", err.Error()))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Warn("failed to close database", slog.String("error", err.Error()))
		}
	}
}

// seedDevUser はメモリストアに開発用ユーザーとセッションを登録する。
func seedDevUser(store *repository.MemoryStore, userID string) {
	now := time.Now()
	store.PutUser(model.User{ID: userID, Email: userID + "@localhost", Name: "Developer", CreatedAt: now, UpdatedAt: now})
	store.PutSession(model.Session{ID: DevSessionID, UserID: userID, ExpiresAt: now.AddDate(10, 0, 0), CreatedAt: now})
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
