package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/civicworks/voterbase/internal/api"
	"github.com/civicworks/voterbase/internal/config"
	"github.com/civicworks/voterbase/internal/importer"
	"github.com/civicworks/voterbase/internal/pkg/distlock"
	"github.com/civicworks/voterbase/internal/pkg/logger"
	"github.com/civicworks/voterbase/internal/profile"
	"github.com/civicworks/voterbase/internal/report"
	"github.com/civicworks/voterbase/internal/sink"
	"github.com/civicworks/voterbase/internal/source"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.RedactPIIEnabled())

	if cfg.Database.URL == "" {
		log.Fatal("database url is required (config database.url or DATABASE_URL)")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	store := profile.NewFileStore(cfg.Profiles.Dir)
	pg := sink.NewPostgres(db)
	runs := sink.NewRunLog(db)

	engine := importer.New(pg)
	engine.SetRunLog(runs)

	handlers := api.NewHandlers(cfg, db, store, engine)
	handlers.SetRunLog(runs)
	handlers.SetAnalyzer(report.NewAnalyzer(db))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	var lockRdb *redis.Client
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, progress tracking disabled", "addr", cfg.Redis.Addr, "error", err)
	} else {
		tracker := importer.NewTracker(rdb)
		engine.SetProgressTracker(tracker)
		handlers.SetProgressTracker(tracker)
		lockRdb = rdb
	}
	cancel()
	engine.SetLockFactory(func(table string) distlock.Lock {
		return distlock.ForTable(lockRdb, db, table, 2*time.Hour)
	})

	if cfg.Source.Enabled && cfg.Source.S3Bucket != "" {
		src, err := source.NewS3Source(context.Background(), source.S3Config{
			Bucket:     cfg.Source.S3Bucket,
			Region:     cfg.Source.S3Region,
			Prefix:     cfg.Source.S3Prefix,
			AWSProfile: cfg.Source.AWSProfile,
		})
		if err != nil {
			logger.Warn("s3 pickup disabled", "error", err)
		} else {
			watchCtx, stopWatch := context.WithCancel(context.Background())
			defer stopWatch()
			watcher := importer.NewWatcher(src, store, engine, 15*time.Minute)
			go watcher.Run(watchCtx)
			logger.Info("s3 pickup enabled",
				"bucket", cfg.Source.S3Bucket, "prefix", cfg.Source.S3Prefix)
		}
	}

	srv := api.NewServer(handlers)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server: %v", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
