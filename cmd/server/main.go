package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/audit"
	"rollcall/internal/config"
	"rollcall/internal/dailycode"
	"rollcall/internal/directory"
	"rollcall/internal/gatepass"
	"rollcall/internal/handler"
	"rollcall/internal/journal"
	"rollcall/internal/logging"
	"rollcall/internal/media"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/queue"
	"rollcall/internal/registry"
	"rollcall/internal/report"
	"rollcall/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logging.Setup(cfg.Env)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, log *slog.Logger) error {
	ctx := context.Background()

	// Store backend.
	var (
		st storage.Store
		pg *storage.Postgres
	)
	switch cfg.StoreBackend {
	case "postgres":
		var err error
		pg, err = storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		st = pg
		log.Info("store ready", "backend", "postgres")
	default:
		st = storage.NewMemory()
		log.Info("store ready", "backend", "memory")
	}

	// Redis backs the journal queue when configured; its health also feeds
	// the readiness probe.
	var redisClient *storage.Redis
	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		redisClient = storage.NewRedis(cfg.RedisAddr)
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:journal")
		log.Info("journal queue ready", "backend", "redis")
	} else {
		q = queue.NewInMemory(256)
		log.Info("journal queue ready", "backend", "memory")
	}

	// Photo hosting is optional; without credentials payload references are
	// stored as submitted.
	var uploads media.Uploader = media.Passthrough{}
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		uploads = media.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Info("cloudinary configured", "cloud", cfg.CloudinaryCloudName)
	}

	loc := cfg.Location()
	signer := gatepass.NewSigner(cfg.PassKey, cfg.PassIssuer)

	dir := directory.New(st)
	codes := dailycode.New(st, signer, loc)
	reg := registry.New(st, signer, loc)

	if err := seedAdmin(ctx, st, cfg, log); err != nil {
		return err
	}

	h := handler.New(handler.Deps{
		Directory: dir,
		Codes:     codes,
		Registry:  reg,
		Audit:     audit.New(st),
		Reports:   report.New(st),
		Uploads:   uploads,
		Journal:   journal.NewPublisher(q, log),
		Metrics:   metrics.New(prometheus.DefaultRegisterer),
		Log:       log,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		redisHealthy := true
		if redisClient != nil {
			redisHealthy = redisClient.Healthy(c.Request.Context())
		}
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy})
	})

	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}

	log.Info("server exited")
	return nil
}

// seedAdmin guarantees a fresh deployment has a working admin login. An
// already-provisioned admin is left untouched.
func seedAdmin(ctx context.Context, st storage.UserStore, cfg config.App, log *slog.Logger) error {
	if cfg.AdminID == "" {
		return nil
	}
	admin := model.User{
		ID:       cfg.AdminID,
		Name:     cfg.AdminName,
		Password: cfg.AdminPassword,
		Role:     model.RoleAdmin,
	}
	err := st.InsertUser(ctx, admin)
	switch {
	case err == nil:
		log.Info("bootstrap admin created", "id", admin.ID)
		return nil
	case errors.Is(err, storage.ErrDuplicate):
		return nil
	default:
		return err
	}
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
