package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mediaforge/internal/auth"
	"mediaforge/internal/cache"
	"mediaforge/internal/config"
	"mediaforge/internal/database"
	"mediaforge/internal/events"
	"mediaforge/internal/handlers"
	"mediaforge/internal/imaging"
	"mediaforge/internal/imaging/codec"
	"mediaforge/internal/invalidate"
	"mediaforge/internal/jobs"
	"mediaforge/internal/logger"
	"mediaforge/internal/objectstore"
	"mediaforge/internal/observability"
	"mediaforge/internal/pipeline"
	"mediaforge/internal/router"
	"mediaforge/internal/upload"
	"mediaforge/internal/video"
)

func main() {
	cfg := config.Load()

	logger.Init("mediaforge", cfg.Env, logger.ParseLevelFromEnv())

	shutdownOTel, err := observability.InitOTel(context.Background(), "mediaforge")
	if err != nil {
		log.Printf("Warning: failed to initialize OpenTelemetry: %v", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Printf("error shutting down OpenTelemetry: %v", err)
			}
		}()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	store, err := objectstore.NewS3Store(objectstore.Config{
		Endpoint:   cfg.StoreEndpoint,
		AccountID:  cfg.StoreAccountID,
		AccessKey:  cfg.StoreAccessKey,
		SecretKey:  cfg.StoreSecretKey,
		BucketName: cfg.StoreBucket,
		PublicURL:  cfg.StorePublicURL,
	})
	if err != nil {
		log.Fatalf("failed to configure object store: %v", err)
	}

	existence := cache.NewExistenceCache(
		cfg.ExistenceCacheCapacity,
		time.Duration(cfg.ExistencePositiveTTL)*time.Second,
		time.Duration(cfg.ExistenceNegativeTTL)*time.Second,
	)
	disk := cache.NewDiskCache(cfg.CacheDir)
	policy := cache.NewPolicy(disk, cfg.LocalCacheCeilingBytes)

	registry := codec.NewRegistry()
	codec.RegisterVipsEncoders(registry)
	optimizer := imaging.NewOptimizer(registry)

	transformer := video.NewTransformer(
		cfg.FFmpegPath, cfg.FFprobePath,
		time.Duration(cfg.VideoTimeoutSeconds)*time.Second,
		cfg.VideoMaxSourceBytes,
	)

	jobStore := jobs.NewStore(db.DB)
	broker := events.NewBroker()
	invalidator := invalidate.NewInvalidator(existence, disk, store)
	deleter := invalidate.NewAssetDeleter(invalidator, jobStore, store)

	p := pipeline.New(existence, disk, policy, store, optimizer, transformer, jobStore, invalidator, cfg.TempDir)

	workerPool := jobs.NewPool(jobStore, &jobs.DefaultProcessor{
		Store:       store,
		Disk:        disk,
		Transformer: transformer,
		TempDir:     cfg.TempDir,
	}, broker, cfg.WorkerConcurrency, time.Duration(cfg.WorkerPollInterval)*time.Millisecond)

	if err := workerPool.Start(context.Background()); err != nil {
		log.Fatalf("failed to start worker pool: %v", err)
	}
	defer workerPool.Stop()

	var authenticator auth.Authenticator = auth.DisabledAuthenticator{}
	if secret := os.Getenv("CLERK_SECRET_KEY"); secret != "" {
		authenticator = auth.NewClerkAuthenticator(secret)
	}

	uploader := upload.NewUploader(store, jobStore, "uploads/")

	deps := router.Deps{
		DB:            db,
		Transform:     handlers.NewTransformHandler(p, cfg.HMACSecret),
		Upload:        handlers.NewUploadHandler(uploader),
		Storage:       handlers.NewStorageHandler(store, invalidator, deleter),
		Queue:         handlers.NewQueueHandler(jobStore),
		Events:        handlers.NewEventsHandler(broker),
		JobStore:      jobStore,
		Authenticator: authenticator,
	}

	r := router.Setup(deps)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("mediaforge listening on port %s (env=%s)", cfg.Port, cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("server exited")
}
