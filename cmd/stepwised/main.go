package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stepwise-ai/stepwise/internal/config"
	"github.com/stepwise-ai/stepwise/internal/db"
	"github.com/stepwise-ai/stepwise/internal/router"
	"github.com/stepwise-ai/stepwise/internal/service"
	"github.com/stepwise-ai/stepwise/internal/settings"
)

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database, cfg.DBDriver); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	log.Println("database migrations applied")

	// Settings store: Redis when configured, in-process otherwise.
	var store settings.Store
	if cfg.RedisAddr != "" {
		redisStore := settings.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisStore.Close()
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			log.Printf("redis ping %s: %v (toggle reads fall back to default)", cfg.RedisAddr, err)
		}
		pingCancel()
		store = redisStore
	} else {
		store = settings.NewMemoryStore()
	}
	settingsSvc := settings.NewService(store, cfg.DecompositionEnabled)

	// Create shared services so the retention sweeper and the HTTP handlers
	// use the same SSEManager and DecompositionService instances.
	sseMan := service.NewSSEManager()
	configSvc := service.NewModelConfigService(database)
	decompSvc := service.NewDecompositionService(database, settingsSvc, configSvc, sseMan,
		time.Duration(cfg.LLMTimeoutSeconds)*time.Second)

	if cfg.ProvidersFile != "" {
		seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := configSvc.SeedFromFile(seedCtx, cfg.ProvidersFile); err != nil {
			log.Printf("seed model configs: %v", err)
		}
		seedCancel()
	}

	var archiver service.Archiver
	if cfg.MinioEndpoint != "" {
		objStore, err := service.NewObjectStoreArchiver(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("archive store: %v", err)
		}
		bucketCtx, bucketCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := objStore.EnsureBucket(bucketCtx); err != nil {
			log.Fatalf("archive bucket: %v", err)
		}
		bucketCancel()
		archiver = objStore
		log.Printf("archiving expired decompositions to %s/%s", cfg.MinioEndpoint, cfg.MinioBucket)
	}

	sweeper := service.NewRetentionSweeper(database, archiver,
		time.Duration(cfg.RetentionDays)*24*time.Hour,
		time.Duration(cfg.SweepIntervalMinutes)*time.Minute)

	handler := router.New(cfg, database, sseMan, settingsSvc, configSvc, decompSvc)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams need unlimited write timeout
		IdleTimeout:  120 * time.Second,
	}

	// Root context cancelled on shutdown; stops the retention sweeper.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	go sweeper.Start(rootCtx)

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("stepwise listening on :%s (driver=%s)", cfg.Port, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-done
	log.Println("shutting down...")
	rootCancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("stopped")
}
