package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healthmate/core/internal/app"
	"github.com/healthmate/core/internal/config"
	"github.com/healthmate/core/internal/modules/storage/legacy"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	importLegacy := flag.Bool("import-legacy", false, "Import data from the legacy MongoDB deployment and exit")
	mongoURL := flag.String("mongo-url", os.Getenv("MONGO_URL"), "MongoDB connection string for --import-legacy")
	mongoDB := flag.String("mongo-db", os.Getenv("MONGO_DB"), "MongoDB database name for --import-legacy")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.IsDev() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	application, err := app.New(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", zap.Error(err))
	}

	if *importLegacy {
		if *mongoURL == "" || *mongoDB == "" {
			logger.Fatal("--import-legacy requires --mongo-url and --mongo-db")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := legacy.ImportFromMongo(ctx, application.DB(), *mongoURL, *mongoDB, logger); err != nil {
			logger.Fatal("legacy import failed", zap.Error(err))
		}
		logger.Info("legacy import finished")
		application.Shutdown()
		return
	}

	srv := &http.Server{
		Addr:    application.Addr(),
		Handler: application.Router(),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	application.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
