package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kenfolio/internal/auth"
	"kenfolio/internal/config"
	"kenfolio/internal/database"
	"kenfolio/internal/handlers"
	"kenfolio/internal/persistence"
	"kenfolio/internal/portfolio"
	"kenfolio/internal/service"
	"kenfolio/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	repo := database.New(db, logger)
	if err := repo.Migrate(ctx); err != nil {
		logger.Fatalf("migrate failed: %v", err)
	}

	sessions, err := session.NewRegistry(cfg.MaxSessions, cfg.SessionTTL)
	if err != nil {
		logger.Fatalf("session registry: %v", err)
	}
	defer sessions.Close()

	dir := auth.NewDirectory(repo, cfg.MinPasswordLen, logger)
	gw := persistence.NewGateway(repo, logger)
	prices := service.NewCoinGeckoPriceService(cfg.OracleBaseURL, cfg.OracleTimeout, logger)
	valuer := portfolio.NewValuer(prices, cfg.OracleConcurrency, logger)

	h := handlers.NewHandler(ctx, dir, gw, valuer, sessions, logger)

	rg := gin.New()
	rg.Use(handlers.RequestLogger(logger), gin.Recovery())
	h.Register(rg)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: rg}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = server.Shutdown(shutCtx)
	logger.Info("shutdown complete")
}
