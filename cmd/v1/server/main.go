// The game host server: fixed-tick authoritative rooms behind a WebSocket
// endpoint, with health probes and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/bus"
	"github.com/TheZedxD/HomeGameServer/internal/v1/clock"
	"github.com/TheZedxD/HomeGameServer/internal/v1/config"
	"github.com/TheZedxD/HomeGameServer/internal/v1/games"
	"github.com/TheZedxD/HomeGameServer/internal/v1/health"
	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/middleware"
	"github.com/TheZedxD/HomeGameServer/internal/v1/ratelimit"
	"github.com/TheZedxD/HomeGameServer/internal/v1/room"
	"github.com/TheZedxD/HomeGameServer/internal/v1/transport"
)

func main() {
	// .env is optional; real deployments configure the environment directly.
	_ = godotenv.Load()

	cfg, err := config.ValidateEnv()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx := context.Background()

	var redisService *bus.Service
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "redis connection failed", zap.Error(err))
		}
		redisClient = redisService.Client()
		defer redisService.Close()
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		logging.Fatal(ctx, "rate limiter setup failed", zap.Error(err))
	}

	scheduler := clock.NewScheduler(clock.Options{
		TickInterval:     cfg.TickInterval(),
		SnapshotInterval: cfg.SnapshotInterval(),
	})
	scheduler.Start()
	defer scheduler.Stop()

	registry := room.NewRegistry(cfg, games.NewRegistry(), scheduler, redisService)
	registry.Start()
	defer registry.Stop()

	hub := transport.NewHub(cfg, registry, limiter)
	healthHandler := health.NewHandler(redisService, scheduler)

	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     splitList(cfg.AllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.HeaderXCorrelationID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/ws", hub.ServeWs)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info(ctx, "game host listening",
			zap.String("port", cfg.Port),
			zap.Int("tick_rate", cfg.TickRate),
			zap.Int("snapshot_rate", cfg.SnapshotRate))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "forced shutdown", zap.Error(err))
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
