package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/podsage/internal/ai"
	"github.com/xxxsen/podsage/internal/config"
	"github.com/xxxsen/podsage/internal/db"
	"github.com/xxxsen/podsage/internal/embedcache"
	"github.com/xxxsen/podsage/internal/handler"
	"github.com/xxxsen/podsage/internal/job"
	"github.com/xxxsen/podsage/internal/middleware"
	"github.com/xxxsen/podsage/internal/repo"
	"github.com/xxxsen/podsage/internal/reportstore"
	"github.com/xxxsen/podsage/internal/schedule"
	"github.com/xxxsen/podsage/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "podsage",
		Short: "podsage backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run podsage server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	var extractMode string
	var extractDryRun bool
	extractCmd := &cobra.Command{
		Use:   "extract [podcast...]",
		Short: "run a one-shot extraction and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			podcasts := args
			if len(podcasts) == 0 {
				podcasts = cfg.Extract.Podcasts
			}
			if len(podcasts) == 0 {
				return fmt.Errorf("no podcasts given and extract.podcasts is empty")
			}
			app, err := buildApp(cfg, conn)
			if err != nil {
				return err
			}
			opts := service.RunOptions{Mode: extractMode, DryRun: extractDryRun}
			for _, slug := range podcasts {
				result, err := app.extract.RunWith(cmd.Context(), slug, opts)
				if err != nil {
					return fmt.Errorf("extract %s: %w", slug, err)
				}
				logutil.GetLogger(cmd.Context()).Info("extraction finished",
					zap.String("podcast", slug),
					zap.Bool("dry_run", result.DryRun),
					zap.Int("concepts", result.Concepts),
					zap.Int("insights", result.Insights))
				if !result.DryRun {
					app.reports.Publish(cmd.Context(), result)
				}
			}
			return nil
		},
	}
	extractCmd.Flags().StringVar(&extractMode, "mode", service.ModeBoth, "both, concepts or insights")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "generate and filter without replacing artifacts")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd, extractCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

// app bundles the wired service layer so the server and the one-shot
// extract command share one construction path.
type app struct {
	chat    *service.ChatService
	extract *service.ExtractService
	reports *service.ReportService
}

func buildApp(cfg *config.Config, conn *sql.DB) (*app, error) {
	podcastRepo := repo.NewPodcastRepo(conn)
	guestRepo := repo.NewGuestRepo(conn)
	episodeRepo := repo.NewEpisodeRepo(conn)
	themeRepo := repo.NewThemeRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	conceptRepo := repo.NewConceptRepo(conn)
	insightRepo := repo.NewInsightRepo(conn)
	usageRepo := repo.NewUsageRepo(conn)
	usageLogRepo := repo.NewUsageLogRepo(conn)

	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	chatGen, err := ai.BuildGenerator(chainEntries(cfg.AI.Chat))
	if err != nil {
		return nil, fmt.Errorf("init chat generator: %w", err)
	}
	chatGen = ai.WithTimeout(chatGen, timeout)
	extractGen, err := ai.BuildGenerator(chainEntries(cfg.AI.Extract))
	if err != nil {
		return nil, fmt.Errorf("init extract generator: %w", err)
	}
	extractGen = ai.WithTimeout(extractGen, timeout)
	embedder, err := ai.BuildEmbedder(chainEntries(cfg.AI.Embed))
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	embedder = ai.WithEmbedTimeout(embedder, timeout)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder,
		cfg.AI.EmbedCacheSize, time.Duration(cfg.AI.EmbedCacheTTL)*time.Second)

	guard := service.NewGuard(usageRepo, cfg.Limits)
	chatService := service.NewChatService(cfg.Chat, guard, chatGen, embedder,
		podcastRepo, guestRepo, episodeRepo, themeRepo, chunkRepo, usageLogRepo)
	extractService := service.NewExtractService(cfg.Extract, extractGen,
		podcastRepo, guestRepo, episodeRepo, chunkRepo, conceptRepo, insightRepo, usageLogRepo)

	store, err := reportstore.New(cfg.ReportStore)
	if err != nil {
		return nil, fmt.Errorf("init report store: %w", err)
	}
	reportService := service.NewReportService(store).
		WithUsageSummary(usageLogRepo.CountByStatus, usageLogRepo.SumTokens)

	return &app{chat: chatService, extract: extractService, reports: reportService}, nil
}

func chainEntries(entries []config.ProviderEntry) []ai.ChainEntry {
	out := make([]ai.ChainEntry, 0, len(entries))
	for _, ent := range entries {
		out = append(out, ai.ChainEntry{Provider: ent.Provider, Model: ent.Model, Data: ent.Data})
	}
	return out
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("report_store", cfg.ReportStore.Type),
	)

	app, err := buildApp(cfg, conn)
	if err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Chat:         handler.NewChatHandler(app.chat),
		Extract:      handler.NewExtractHandler(app.extract, app.reports),
		Content:      handler.NewContentHandler(repo.NewPodcastRepo(conn), repo.NewConceptRepo(conn), repo.NewInsightRepo(conn)),
		ChatDebounce: time.Duration(cfg.Chat.DebounceMillis) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			middleware.RequestID(),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Extract.Enabled {
		scheduler := schedule.NewCronScheduler()
		extractJob := job.NewExtractJob(app.extract, app.reports, cfg.Extract.Podcasts)
		if err := scheduler.AddJob(extractJob, cfg.Extract.CronSpec); err != nil {
			return fmt.Errorf("schedule extraction: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
