package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"payload/internal/config"
	apphttp "payload/internal/http"
	"payload/internal/photos"
	"payload/internal/repository/sqlite"
	"payload/internal/service"
	"payload/internal/storage"
	"payload/internal/store"
	"payload/internal/valuation"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	recordRepo := sqlite.NewRecordRepository(db)
	userRepo := sqlite.NewUserRepository(db)

	if err := recordRepo.Init(ctx); err != nil {
		logger.Fatalf("init record repository: %v", err)
	}
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	processor := photos.NewProcessor(photos.Config{
		Bucket:        cfg.Storage.Bucket,
		KeyPrefix:     cfg.Storage.KeyPrefix,
		MaxConcurrent: cfg.Photos.MaxConcurrent,
		MaxBytes:      cfg.Photos.MaxBytes,
		Logger:        logger,
	}, storageSvc)

	records := store.New(recordRepo)
	userService := service.NewUserService(userRepo, service.AdminAccount{
		Username: cfg.Auth.AdminUsername,
		Password: cfg.Auth.AdminPassword,
	})
	recordService := service.NewRecordService(records, processor, service.RecordServiceConfig{
		Table:  valuation.Default(),
		Logger: logger,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Config{
		Users:       userService,
		Records:     recordService,
		Store:       records,
		Storage:     storageSvc,
		Bucket:      cfg.Storage.Bucket,
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		TokenTTL:    cfg.TokenTTL(),
		PhotoURLTTL: cfg.PhotoURLTTL(),
		Logger:      logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

// buildStorage returns nil when no bucket is configured; records are then
// kept without photos.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Warn("storage bucket not configured, photos will be dropped")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
