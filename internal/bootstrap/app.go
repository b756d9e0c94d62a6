package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/accounts"
	"kamiscan-backend/internal/analytics"
	googleauth "kamiscan-backend/internal/auth"
	"kamiscan-backend/internal/billing"
	"kamiscan-backend/internal/chat"
	"kamiscan-backend/internal/exports"
	"kamiscan-backend/internal/llm"
	"kamiscan-backend/internal/llm/gemini"
	"kamiscan-backend/internal/llm/openai"
	"kamiscan-backend/internal/shared/config"
	"kamiscan-backend/internal/shared/server"
	"kamiscan-backend/internal/shared/storage/db"
	"kamiscan-backend/internal/shared/storage/object"
	localstore "kamiscan-backend/internal/shared/storage/object/local"
	miniostore "kamiscan-backend/internal/shared/storage/object/minio"
	s3store "kamiscan-backend/internal/shared/storage/object/s3"
	"kamiscan-backend/internal/summaries"
	"kamiscan-backend/internal/usage"
)

const gatewayTimeout = 30 * time.Second

// App holds shared dependencies and the configured router.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	LLM    llm.Generator

	AccountsRepo  accounts.Repo
	SummariesRepo summaries.Repo
	ChatRepo      chat.Repo
	PaymentsRepo  billing.Repo

	AccountsService  *accounts.Service
	UsageService     *usage.Service
	SummaryService   *summaries.Service
	ChatService      *chat.Service
	BillingService   *billing.Service
	AnalyticsService *analytics.Service
	ExportService    *exports.Service

	AccountsHandler  *accounts.Handler
	UsageHandler     *usage.Handler
	SummaryHandler   *summaries.Handler
	ChatHandler      *chat.Handler
	BillingHandler   *billing.Handler
	AnalyticsHandler *analytics.Handler
	ExportHandler    *exports.Handler
	GoogleAuth       *googleauth.GoogleService
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	generator, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		LLM:    generator,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config: app.Config,
		Handlers: []server.RouteRegistrar{
			app.GoogleAuth,
			app.AccountsHandler,
			app.UsageHandler,
			app.SummaryHandler,
			app.ChatHandler,
			app.BillingHandler,
			app.AnalyticsHandler,
			app.ExportHandler,
		},
		DevHandlers: []server.DevRouteRegistrar{app.UsageHandler},
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	// Production schemas are applied by cmd/migrate before rollout.
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		store, err := miniostore.New(miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.AWSRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("OBJECT_STORE=minio: %w", err)
		}
		ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.EnsureBucket(ensureCtx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildGenerator picks the configured provider. A missing key yields the
// placeholder so uploads still get demo summaries.
func buildGenerator(cfg config.Config) (llm.Generator, error) {
	timeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	var (
		generator llm.Generator
		err       error
	)
	switch cfg.LLMProvider {
	case "openai":
		generator, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, timeout)
	default:
		generator, err = gemini.NewClient(cfg.GeminiAPIKey, cfg.LLMModel, timeout)
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		log.Printf("bootstrap: %s API key missing; summaries run in demo mode", cfg.LLMProvider)
		return llm.PlaceholderGenerator{}, nil
	}
	if err != nil {
		return nil, err
	}
	return generator, nil
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.AccountsRepo = &accounts.PGRepo{DB: app.DB}
		app.SummariesRepo = &summaries.PGRepo{DB: app.DB}
		app.ChatRepo = &chat.PGRepo{DB: app.DB}
		app.PaymentsRepo = &billing.PGRepo{DB: app.DB}
	} else {
		app.AccountsRepo = accounts.NewMemoryRepo()
		app.SummariesRepo = summaries.NewMemoryRepo()
		app.ChatRepo = chat.NewMemoryRepo()
		app.PaymentsRepo = billing.NewMemoryRepo()
	}

	cfg := app.Config
	app.AccountsService = accounts.NewService(app.AccountsRepo, cfg.AdminEmail)
	app.UsageService = usage.NewService(app.AccountsRepo)
	app.SummaryService = summaries.NewService(app.SummariesRepo, app.UsageService, app.LLM, cfg.MaxUploadBytes, cfg.MaxPromptChars)
	app.ChatService = chat.NewService(app.ChatRepo, app.SummaryService, app.UsageService, app.LLM)
	app.AnalyticsService = analytics.NewService(app.SummariesRepo, app.ChatRepo)
	app.ExportService = exports.NewService(app.Store)

	var gateway billing.Gateway
	razorpay, err := billing.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, gatewayTimeout)
	switch {
	case err == nil:
		gateway = razorpay
	case errors.Is(err, billing.ErrNotConfigured):
		log.Printf("bootstrap: razorpay keys missing; payment routes return 503")
	default:
		return err
	}
	app.BillingService = billing.NewService(app.PaymentsRepo, gateway, app.AccountsRepo)

	app.AccountsHandler = accounts.NewHandler(app.AccountsService)
	app.UsageHandler = usage.NewHandler(app.UsageService, app.AnalyticsService)
	app.SummaryHandler = summaries.NewHandler(app.SummaryService)
	app.ChatHandler = chat.NewHandler(app.ChatService)
	app.BillingHandler = billing.NewHandler(app.BillingService)
	app.AnalyticsHandler = analytics.NewHandler(app.AnalyticsService, app.AccountsService)
	app.ExportHandler = exports.NewHandler(app.ExportService)
	app.GoogleAuth = googleauth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
		app.AccountsService,
		!isDevLike(cfg.Env),
	)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
