package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/moodlens/internal/config"
	"github.com/hitoshi/moodlens/internal/database"
	"github.com/hitoshi/moodlens/internal/handler"
	"github.com/hitoshi/moodlens/internal/insight"
	"github.com/hitoshi/moodlens/internal/metrics"
	"github.com/hitoshi/moodlens/internal/middleware"
	"github.com/hitoshi/moodlens/internal/worker"
	"github.com/hitoshi/moodlens/internal/worker/cleanup"
	"github.com/hitoshi/moodlens/internal/worker/regenerate"
)

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンド省略時はserveとして起動する。
// SIGINTまたはSIGTERMを受信するとコンテキストをキャンセルする。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand はmoodlensのコマンドツリーを構築する。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "moodlens",
		Short:         "Mood and journal pattern insights",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), w, runServe)
		},
	}
	root.SetOut(w)

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withComponents(cmd.Context(), w, runServe)
			},
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Run scheduled insight regeneration and cleanup",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withComponents(cmd.Context(), w, runWorker)
			},
		},
		newMigrateCommand(w),
		newHealthcheckCommand(),
		newInsightsCommand(w),
	)

	return root
}

// withComponents は設定を読み込み依存関係を組み立ててからfnを実行する。
func withComponents(ctx context.Context, w io.Writer, fn func(ctx context.Context, c *components) error) error {
	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	c, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}

// runServe はAPIサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
// メモリストア構成ではワーカーを別プロセスで動かせないため、再生成ジョブも同じプロセスで動かす。
func runServe(ctx context.Context, c *components) error {
	cfg := c.cfg

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitRegenerate),
	)
	defer rateLimiter.Stop()

	var healthChecker handler.HealthChecker = handler.NoopHealthChecker{}
	if c.db != nil {
		healthChecker = c.db
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            c.logger,
		SessionFinder:     c.sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              cfg.CookieSecure,
		RateLimiter:       rateLimiter,
		CSRFConfig:        middleware.CSRFConfig{CookieSecure: cfg.CookieSecure},
		StatusMetrics:     c.collector,
		HealthChecker:     healthChecker,
		MetricsHandler:    metrics.SetupMetricsRoute(c.registry),
		CheckinService:    handler.NewCheckinServiceAdapter(c.checkinSvc),
		InsightService:    handler.NewInsightServiceAdapter(c.insightSvc),
		UserService:       handler.NewUserServiceAdapter(c.userSvc),
		DefaultRangeDays:  cfg.DefaultRangeDays,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.InsightTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.StorageDriver == config.StorageMemory {
		sched, err := newScheduler(c)
		if err != nil {
			return err
		}
		go sched.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	c.logger.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	c.logger.Info("API server stopped gracefully")
	return nil
}

// runWorker はスケジューラを起動し、ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, c *components) error {
	if c.cfg.StorageDriver == config.StorageMemory {
		return errors.New("worker requires STORAGE_DRIVER=postgres; serve runs jobs in-process for memory storage")
	}

	sched, err := newScheduler(c)
	if err != nil {
		return err
	}

	// 起動直後に1回再生成し、次のcron実行まで古いカードを残さない
	go sched.RunNow(ctx, "regenerate", newRegenerateJob(c))

	c.logger.Info("worker starting",
		slog.String("regenerate_schedule", c.cfg.RegenerateSchedule),
		slog.String("cleanup_schedule", c.cfg.CleanupSchedule),
		slog.Int("max_concurrent", c.cfg.RegenerateMaxConcurrent),
	)

	sched.Start(ctx)

	c.logger.Info("worker stopped gracefully")
	return nil
}

// newScheduler は再生成ジョブと、DBがある場合はクリーンアップジョブを登録したスケジューラを返す。
func newScheduler(c *components) (*worker.Scheduler, error) {
	sched := worker.NewScheduler(c.logger)

	if err := sched.Add("regenerate", c.cfg.RegenerateSchedule, newRegenerateJob(c)); err != nil {
		return nil, err
	}

	if c.db != nil {
		cleanupJob := cleanup.NewCleanupJob(c.db, c.logger, c.cfg.InsightRetentionDays)
		if err := sched.Add("cleanup", c.cfg.CleanupSchedule, cleanupJob); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

func newRegenerateJob(c *components) *regenerate.Job {
	return regenerate.NewJob(c.moods, c.insightSvc, c.logger, regenerate.Config{
		RangeDays:      c.cfg.DefaultRangeDays,
		ActiveUserDays: c.cfg.ActiveUserDays,
		MaxConcurrency: c.cfg.RegenerateMaxConcurrent,
	})
}

// newMigrateCommand はスキーマのマイグレーション用サブコマンドを返す。
// フラグなしでは未適用分をすべて適用する。
func newMigrateCommand(w io.Writer) *cobra.Command {
	var (
		rollback int
		status   bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			if cfg.StorageDriver != config.StoragePostgres {
				return fmt.Errorf("migrate requires STORAGE_DRIVER=postgres, got %q", cfg.StorageDriver)
			}
			return runMigrate(cmd.OutOrStdout(), log, cfg.DatabaseURL, rollback, status)
		},
	}
	cmd.Flags().IntVar(&rollback, "rollback", 0, "roll back the given number of migrations")
	cmd.Flags().BoolVar(&status, "status", false, "print the current schema version and exit")
	return cmd
}

func runMigrate(out io.Writer, log *slog.Logger, databaseURL string, rollback int, status bool) error {
	log = log.With(slog.String("database_url", maskDatabaseURL(databaseURL)))

	switch {
	case status:
		st, err := database.Status(databaseURL)
		if err != nil {
			return err
		}
		if !st.Applied {
			fmt.Fprintln(out, "no migrations applied")
			return nil
		}
		fmt.Fprintf(out, "version %d (dirty: %t)\n", st.Version, st.Dirty)
		return nil
	case rollback > 0:
		log.Info("rolling back database migrations", slog.Int("steps", rollback))
		if err := database.RollbackMigrations(databaseURL, rollback); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Info("database rollback completed")
		return nil
	}

	log.Info("running database migrations")
	if err := database.RunMigrations(databaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info("database migrations completed successfully")
	return nil
}

// newHealthcheckCommand はdistroless環境でのDockerヘルスチェック用サブコマンドを返す。
// フル初期化をスキップし、/health エンドポイントの応答だけを確認する。
func newHealthcheckCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(cmd.Context(), port)
		},
	}
	defaultPort := os.Getenv("SERVER_PORT")
	if defaultPort == "" {
		defaultPort = "8080"
	}
	cmd.Flags().StringVar(&port, "port", defaultPort, "server port to probe")
	return cmd
}

func runHealthcheck(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// newInsightsCommand は1ユーザーのレポートをJSONで出力するサブコマンドを返す。
func newInsightsCommand(w io.Writer) *cobra.Command {
	var (
		userID    string
		rangeDays int
		regen     bool
	)
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Print the insight report for a user as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), w, func(ctx context.Context, c *components) error {
				days := rangeDays
				if days == 0 {
					days = c.cfg.DefaultRangeDays
				}
				return printInsights(ctx, cmd.OutOrStdout(), handler.NewInsightServiceAdapter(c.insightSvc),
					userID, insight.ClampRange(days), regen)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID (required)")
	cmd.Flags().IntVar(&rangeDays, "range", 0, "range in days (7-365, default DEFAULT_RANGE_DAYS)")
	cmd.Flags().BoolVar(&regen, "regenerate", false, "regenerate and persist before printing")
	cmd.MarkFlagRequired("user")
	return cmd
}

// printInsights はレポートを取得してoutへ整形出力する。
// 再生成時の保存失敗はレポートを出力した上でエラーとして返す。
func printInsights(ctx context.Context, out io.Writer, svc handler.InsightServiceInterface, userID string, days int, regen bool) error {
	var (
		resp any
		err  error
	)
	if regen {
		r, rerr := svc.Regenerate(ctx, userID, days)
		if r != nil {
			resp = r
		}
		err = rerr
	} else {
		r, rerr := svc.Report(ctx, userID, days)
		if r != nil {
			resp = r
		}
		err = rerr
	}

	if resp != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(resp); encErr != nil {
			return fmt.Errorf("failed to write report: %w", encErr)
		}
	}
	return err
}
