package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pbparthas/enki/internal/api/handlers"
	"github.com/pbparthas/enki/internal/config"
	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/jobs"
	"github.com/pbparthas/enki/internal/openai"
	"github.com/pbparthas/enki/internal/repository"
	"github.com/pbparthas/enki/internal/server"
	"github.com/pbparthas/enki/internal/service"
	"github.com/pbparthas/enki/internal/storage"
	"github.com/pbparthas/enki/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the enki API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	itemRepo := repository.NewItemRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	searchRepo := repository.NewSearchRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(apiKeyRepo, uuidGen)

	if cfg.InitAgentKey != "" || cfg.InitReviewerKey != "" {
		if err := bootstrapAPIKeys(ctx, cfg, authSvc); err != nil {
			return fmt.Errorf("failed to bootstrap API keys: %w", err)
		}
	}

	var snapshotUploader service.SnapshotUploader
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		snapshotUploader = s3Client
	}

	var embeddingClient service.EmbeddingClient
	var embeddingWorker *jobs.Worker
	if cfg.HasOpenAI() {
		embeddingClient = openai.NewClient(cfg.OpenAIAPIKey)
		embeddingSvc := service.NewEmbeddingService(embeddingClient, itemRepo)
		embeddingProcessor := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)
		embeddingWorker = jobs.NewWorker(embeddingProcessor, cfg.EmbeddingPollInterval)
		go embeddingWorker.Start(ctx)
		log.Println("embedding worker started")
	}

	thresholds := service.Thresholds{
		D90:  cfg.DecayD90,
		D180: cfg.DecayD180,
		D365: cfg.DecayD365,
	}

	contentStore := service.NewContentStore(itemRepo, embeddingJobRepo)
	stagingStore := service.NewStagingStore(candidateRepo, itemRepo)
	retentionEngine := service.NewRetentionEngine(itemRepo, thresholds)
	reviewSvc := service.NewReviewService(txRunner, candidateRepo, itemRepo)
	searchSvc := service.NewSearchService(searchRepo, itemRepo, embeddingClient, cfg.SearchMinScoreFraction)
	exportSvc := service.NewExportService(itemRepo, snapshotUploader)

	retentionProcessor := jobs.NewRetentionWorker(retentionEngine)
	retentionWorker := jobs.NewWorker(retentionProcessor, cfg.DecayInterval)
	go retentionWorker.Start(ctx)
	log.Println("retention worker started")

	itemHandler := handlers.NewItemHandler(contentStore, retentionEngine)
	candidateHandler := handlers.NewCandidateHandler(stagingStore)
	searchHandler := handlers.NewSearchHandler(searchSvc)

	var exporter handlers.SnapshotExporter
	if snapshotUploader != nil {
		exporter = exportSvc
	}
	reviewHandler := handlers.NewReviewHandler(reviewSvc, contentStore, retentionEngine, exporter)

	routerCfg := server.RouterConfig{
		AuthValidator:    authSvc,
		ItemHandler:      itemHandler,
		CandidateHandler: candidateHandler,
		SearchHandler:    searchHandler,
		ReviewHandler:    reviewHandler,
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if embeddingWorker != nil {
		embeddingWorker.Stop()
	}
	retentionWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func bootstrapAPIKeys(ctx context.Context, cfg *config.Config, authSvc *service.AuthService) error {
	seeds := []struct {
		token string
		name  string
		role  domain.APIKeyRole
	}{
		{cfg.InitAgentKey, "bootstrap-agent", domain.RoleAgent},
		{cfg.InitReviewerKey, "bootstrap-reviewer", domain.RoleReviewer},
	}

	for _, seed := range seeds {
		if seed.token == "" {
			continue
		}
		if !service.IsValidAPIToken(seed.token) {
			return fmt.Errorf("invalid %s token format (expected 'enk_<64 hex chars>')", seed.name)
		}

		if existing, err := authSvc.ValidateAPIKey(ctx, seed.token); err == nil && existing != nil {
			log.Printf("bootstrap: %s key already exists (id: %s)", seed.role, existing.ID)
			continue
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, seed.name, seed.role, seed.token); err != nil {
			return fmt.Errorf("failed to create %s key: %w", seed.name, err)
		}
		log.Printf("bootstrap: created %s API key", seed.role)
	}

	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
