package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/mdns"
	"github.com/redis/go-redis/v9"

	"github.com/inkdrift/inkdrift/internal/auth"
	"github.com/inkdrift/inkdrift/internal/collab"
	"github.com/inkdrift/inkdrift/internal/config"
	"github.com/inkdrift/inkdrift/internal/discovery"
	"github.com/inkdrift/inkdrift/internal/export"
	mw "github.com/inkdrift/inkdrift/internal/middleware"
	"github.com/inkdrift/inkdrift/internal/room"
	"github.com/inkdrift/inkdrift/internal/store"
	"github.com/inkdrift/inkdrift/internal/store/postgres"
	"github.com/inkdrift/inkdrift/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("connect to redis", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	st, err := openStore(ctx, cfg, rdb)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	hubOpts := collab.HubOptions{Store: st, CompactAfter: cfg.SnapshotInterval}
	if rdb != nil {
		hubOpts.Broker = collab.NewRedisBroker(rdb, slog.Default())
	}
	hub := collab.NewHub(hubOpts)
	hubCtx, stopHub := context.WithCancel(ctx)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	authService := auth.NewService(cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	roomService := room.NewService(st.KV(room.Namespace), authService)
	roomHandler := room.NewHandler(roomService)

	exportHandler := export.NewHandler(hub, slog.Default())

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.AllowedOrigins))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.Handle("/auth/verify", authService.Middleware(http.HandlerFunc(authHandler.Verify))).Methods("GET")

	roomHandler.Routes(r)
	r.HandleFunc("/rooms/{roomId}/export.pdf", exportHandler.ExportPDF).Methods("GET")

	// WebSocket endpoint
	r.HandleFunc("/ws/{roomId}", hub.ServeWS(roomService, cfg.OriginPatterns()))

	var advertiser *mdns.Server
	if cfg.MDNSEnabled {
		advertiser, err = discovery.Advertise(discovery.AdvertiseOptions{
			Port: cfg.Port,
			Info: map[string]string{"path": "/ws/", "version": "1"},
		})
		if err != nil {
			slog.Warn("mdns advertise failed", "error", err)
		} else {
			slog.Info("advertising relay on the local network", "service", discovery.ServiceType)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		if advertiser != nil {
			advertiser.Shutdown()
		}

		// Stop the hub first so every open room flushes to the store.
		stopHub()
		<-hubDone

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore picks postgres when DATABASE_URL is set, then Redis, then memory.
func openStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) (store.Provider, error) {
	switch {
	case cfg.DatabaseURL != "":
		slog.Info("using postgres store")
		return postgres.Open(ctx, cfg.DatabaseURL)
	case rdb != nil:
		slog.Info("using redis store", "addr", cfg.RedisAddr)
		return redisstore.New(rdb), nil
	default:
		slog.Warn("no DATABASE_URL or REDIS_ADDR set, boards are kept in memory")
		return store.NewMemory(), nil
	}
}
