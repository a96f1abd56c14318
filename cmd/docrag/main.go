package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docrag/internal/config"
	"github.com/xxxsen/docrag/internal/db"
	"github.com/xxxsen/docrag/internal/handler"
	"github.com/xxxsen/docrag/internal/job"
	"github.com/xxxsen/docrag/internal/middleware"
	"github.com/xxxsen/docrag/internal/schedule"
	"github.com/xxxsen/docrag/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "docrag",
		Short:         "document question answering and repurposing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")

	rootCmd.AddCommand(
		newRunCmd(&configPath),
		newMigrateCmd(&configPath),
		newIngestCmd(&configPath),
		newAskCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

// loadConfig reads .env (if any), the config file and initializes logging.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
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
	return cfg, nil
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run docrag server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(ctx, a)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return fmt.Errorf("database is not configured")
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			printOK(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(ctx).Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)

	deps := handler.RouterDeps{
		RAG:             handler.NewRAGHandler(a.rag, a.qa, cfg.RAG.MaxUploadBytes),
		Repurpose:       handler.NewRepurposeHandler(a.repurpose),
		Files:           handler.NewFileHandler(a.files),
		SessionSecret:   []byte(cfg.SessionSecret),
		SessionTTL:      time.Duration(cfg.SessionTTLHours) * time.Hour,
		NewScope:        service.NewScope,
		GenerateLimiter: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedExtensions([]string{".wav"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if a.embedCacheRepo != nil {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(a.embedCacheRepo, cfg.Jobs.EmbeddingCacheMaxDays), cfg.Jobs.EmbeddingCacheCleanup); err != nil {
			return err
		}
	}
	if a.artifactRepo != nil {
		if err := scheduler.AddJob(job.NewArtifactCleanupJob(a.artifactRepo, a.files, cfg.Jobs.ArtifactMaxDays), cfg.Jobs.ArtifactCleanup); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
