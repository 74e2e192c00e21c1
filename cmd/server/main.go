package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"promoledger/config"
	"promoledger/internal/app"
	"promoledger/internal/logger"
	"promoledger/internal/router"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		// zap is not configured yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap", zap.Error(err))
	}
	defer a.Close()

	if cfg.Database.AutoMigrate {
		if err := a.Migrate(ctx); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	engine, stopLimiter := router.Setup(a)
	defer stopLimiter()
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	jobsDone := make(chan struct{})
	if cfg.Jobs.Enabled {
		go func() {
			defer close(jobsDone)
			if err := a.Scheduler().Run(ctx); err != nil {
				log.Error("scheduler stopped", zap.Error(err))
			}
		}()
	} else {
		close(jobsDone)
		log.Info("background jobs disabled")
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	<-jobsDone
	log.Info("server stopped")
}
