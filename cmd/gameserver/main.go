// Package main provides the game server binary: a websocket endpoint that
// hosts two-player sessions with join codes, matchmaking, and reconnect
// grace periods.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridlock/internal/config"
	"github.com/cory-johannsen/gridlock/internal/game/registry"
	"github.com/cory-johannsen/gridlock/internal/game/session"
	"github.com/cory-johannsen/gridlock/internal/gameserver"
	"github.com/cory-johannsen/gridlock/internal/observability"
	"github.com/cory-johannsen/gridlock/internal/server"
	"github.com/cory-johannsen/gridlock/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	reg := registry.NewManager(cfg.Game.CodeLength)
	bindings := session.NewManager()
	srv := gameserver.NewServer(reg, bindings, cfg.Game.GracePeriod, logger)
	hub := ws.NewHub(cfg.Websocket, srv, logger)
	srv.SetSender(hub)

	mux := http.NewServeMux()
	mux.Handle("GET /ws", hub)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	logger.Info("game server initialized",
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("grace_period", cfg.Game.GracePeriod),
		zap.Duration("startup", time.Since(start)),
	)

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("listening", zap.String("addr", cfg.Server.Addr()))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	// The hub has no run loop of its own; connections are driven by the
	// http service.
	hubDone := make(chan struct{})
	lifecycle.Add("hub", &server.FuncService{
		StartFn: func() error {
			<-hubDone
			return nil
		},
		StopFn: func() {
			hub.Stop()
			srv.Reconnect().Stop()
			close(hubDone)
		},
	})

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
