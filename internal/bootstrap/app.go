package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"docqr-backend/internal/activity"
	"docqr-backend/internal/documents"
	"docqr-backend/internal/enrich"
	"docqr-backend/internal/extract"
	"docqr-backend/internal/llm"
	"docqr-backend/internal/llm/gemini"
	openai "docqr-backend/internal/llm/openai"
	"docqr-backend/internal/notify"
	"docqr-backend/internal/processing"
	"docqr-backend/internal/services/health"
	"docqr-backend/internal/shared/config"
	"docqr-backend/internal/shared/qr"
	"docqr-backend/internal/shared/server"
	"docqr-backend/internal/shared/storage/db"
	"docqr-backend/internal/shared/storage/object"
	localstore "docqr-backend/internal/shared/storage/object/local"
	miniostore "docqr-backend/internal/shared/storage/object/minio"
	s3store "docqr-backend/internal/shared/storage/object/s3"
	"docqr-backend/internal/shared/telemetry"
)

// App holds the wired dependency graph.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sqlx.DB
	Store            object.ObjectStore
	Queue            *processing.Queue
	Broker           *notify.Broker
	DocumentsRepo    documents.Repo
	DocumentsService *documents.Service
	ActivityService  *activity.Service
	Orchestrator     *processing.Orchestrator

	closers []func() error
}

// Build connects storage, constructs services and mounts routes. Processing
// workers start immediately; callers must call Shutdown.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	app := &App{Config: cfg, Broker: notify.NewBroker()}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if sqlDB != nil {
		app.DB = sqlDB
		app.closers = append(app.closers, sqlDB.Close)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.close()
		return nil, err
	}
	app.Store = store

	extractor, closeExtractor, err := BuildExtractor(ctx, cfg)
	if err != nil {
		app.close()
		return nil, err
	}
	if closeExtractor != nil {
		app.closers = append(app.closers, closeExtractor)
	}

	enricher, err := BuildEnricher(cfg)
	if err != nil {
		app.close()
		return nil, err
	}

	if err := buildServices(app, extractor, enricher); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func buildServices(app *App, extractor *extract.Extractor, enricher *enrich.Client) error {
	cfg := app.Config

	var docRepo documents.Repo
	var activityRepo activity.Repo
	if app.DB != nil {
		docRepo = documents.NewSQLRepo(app.DB)
		activityRepo = activity.NewSQLRepo(app.DB)
	} else {
		docRepo = documents.NewMemoryRepo()
		activityRepo = activity.NewMemoryRepo()
	}

	activitySvc := activity.NewService(activityRepo, docRepo)

	orchestrator := &processing.Orchestrator{
		Repo:      docRepo,
		Store:     app.Store,
		Extractor: extractor,
		Enricher:  enricher,
		Publisher: notify.NewPublisher(app.Broker),
		Activity:  activitySvc,
		WorkDir:   cfg.WorkDir,
	}

	q, err := processing.NewQueue(processing.QueueOptions{
		Workers:    cfg.WorkerCount,
		Capacity:   cfg.QueueCapacity,
		JobTimeout: cfg.JobTimeout,
	}, orchestrator)
	if err != nil {
		return fmt.Errorf("start processing queue: %w", err)
	}

	docSvc := &documents.Service{
		Store:          app.Store,
		Repo:           docRepo,
		Activity:       activitySvc,
		Dispatcher:     q,
		QR:             qr.NewPNGRenderer(),
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}

	app.Queue = q
	app.DocumentsRepo = docRepo
	app.DocumentsService = docSvc
	app.ActivityService = activitySvc
	app.Orchestrator = orchestrator
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		DocumentHandler: documents.NewHandler(docSvc),
		ActivityHandler: activity.NewHandler(activitySvc),
		Hub:             notify.NewHub(app.Broker, cfg.CORSAllowOrigin),
		Health:          health.NewService(pinger, q),
		Documents:       docRepo,
		Broker:          app.Broker,
	})
	return nil
}

// Shutdown drains in-flight processing and releases connections. Queued jobs
// that have not started are dropped.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Queue != nil {
		if err := a.Queue.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop queue: %w", err))
		}
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			KMSKeyID:        cfg.SSEKMSKeyID,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// BuildExtractor assembles the OCR chain for cfg. The returned close func may be nil.
func BuildExtractor(ctx context.Context, cfg config.Config) (*extract.Extractor, func() error, error) {
	ex := &extract.Extractor{
		TextLayer:  extract.PDFTextLayer{},
		Rasterizer: extract.PdftoppmRasterizer{Binary: cfg.PdftoppmPath},
		DPI:        cfg.RenderDPI,
		WorkDir:    cfg.WorkDir,
	}
	switch cfg.OCREngine {
	case "vision":
		engine, err := extract.NewVisionEngine(ctx, cfg.VisionCredentialsFile, extract.LanguageHints(cfg.OCRLanguages))
		if err != nil {
			return nil, nil, err
		}
		ex.OCR = engine
		return ex, engine.Close, nil
	default:
		ex.OCR = extract.TesseractEngine{Binary: cfg.TesseractPath, Languages: cfg.OCRLanguages}
		return ex, nil, nil
	}
}

// BuildEnricher picks the model provider. A provider without credentials
// degrades to the local fallback rather than failing startup.
func BuildEnricher(cfg config.Config) (*enrich.Client, error) {
	completer, err := buildCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return enrich.New(completer), nil
}

func buildCompleter(cfg config.Config) (llm.Completer, error) {
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			break
		}
		client, err := openai.New(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.OpenAIBaseURL, timeout)
		if err != nil {
			return nil, err
		}
		return llm.WithRetry(client), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			break
		}
		client, err := gemini.New(cfg.GeminiAPIKey, cfg.LLMModel, cfg.GeminiBaseURL, timeout)
		if err != nil {
			return nil, err
		}
		return llm.WithRetry(client), nil
	}
	telemetry.Warn("bootstrap.llm_disabled", map[string]any{"provider": cfg.LLMProvider})
	return llm.PlaceholderClient{}, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
