package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openenroll/portal/handlers"
	"github.com/openenroll/portal/internal/accounts"
	"github.com/openenroll/portal/internal/app"
	"github.com/openenroll/portal/internal/badges"
	"github.com/openenroll/portal/internal/config"
	"github.com/openenroll/portal/internal/enrollment"
	"github.com/openenroll/portal/internal/oidc"
	"github.com/openenroll/portal/internal/profiles"
	"github.com/openenroll/portal/internal/sessions"
	"github.com/openenroll/portal/internal/storage"
	"github.com/openenroll/portal/internal/tokens"
	"github.com/openenroll/portal/pkg/logger"
	"github.com/openenroll/portal/pkg/metrics"
	"github.com/openenroll/portal/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v admins=%d", cfg.Keycloak.Issuer() != "", cfg.MongoDB.Enabled(), cfg.Redis.Addr() != "", cfg.MinIO.Endpoint != "", len(cfg.Keycloak.Admins))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The enrollment key is read once; without it the service cannot accept submissions.
	pub, err := tokens.LoadPublicKey(cfg.Enrollment.PublicKeyPath)
	if err != nil {
		logger.Fatalf("load enrollment public key: %v", err)
	}

	stores, err := app.OpenStores(ctx, cfg.MongoDB)
	if err != nil {
		logger.Fatalf("open stores: %v", err)
	}
	defer stores.Close(context.Background())

	var redisClient *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		c := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := c.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = c.Close()
		} else {
			redisClient = c
			defer redisClient.Close()
			logger.Infof("connected to Redis at %s", addr)
		}
	}

	var revoked sessions.Revocations = sessions.NewMemoryRevocations()
	if redisClient != nil {
		revoked = sessions.NewRedisRevocations(redisClient, "")
	}

	var staffTokens middleware.Verifier
	if v, err := oidc.NewStaffVerifier(ctx, cfg.Keycloak); err != nil {
		logger.Warnf("staff pages disabled: %v", err)
	} else {
		staffTokens = v
	}

	var images storage.ImageStore
	if cfg.MinIO.Endpoint != "" {
		if s, err := storage.NewMinIOImages(ctx, cfg.MinIO); err != nil {
			logger.Warnf("badge image upload disabled: %v", err)
		} else {
			images = s
		}
	}

	profileSvc := profiles.NewService(stores.Profiles)
	deps := handlers.Deps{
		EnrollmentTokens: tokens.NewVerifier(pub),
		Enrollments:      enrollment.NewService(stores.Enrollments, profileSvc),
		Badges:           badges.NewService(stores.Badges),
		Accounts:         accounts.NewService(stores.Accounts, cfg.Keycloak.Admins...),
		Images:           images,
		StaffTokens:      staffTokens,
		Revocations:      revoked,
	}
	if cfg.RateLimit.Enabled {
		deps.IngestLimit = rateLimiter(cfg.RateLimit, redisClient, "ingest")
		deps.PublicLimit = rateLimiter(cfg.RateLimit, redisClient, "public")
	}

	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		checks := map[string]bool{"storage": stores.Ping(c.Request.Context()) == nil}
		if cfg.Redis.Addr() != "" {
			checks["redis"] = redisClient != nil && redisClient.Ping(c.Request.Context()).Err() == nil
		}
		if cfg.Keycloak.Issuer() != "" {
			checks["oidc"] = staffTokens != nil
		}
		status, code := "ready", http.StatusOK
		for _, ok := range checks {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": checks, "persistent": stores.Persistent, "uptime": time.Since(startTime).String()})
	})

	handlers.Mount(r, deps)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting portal on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

func rateLimiter(rl config.RateLimitConfig, client *redis.Client, scope string) gin.HandlerFunc {
	if rl.UseRedis && client != nil {
		return middleware.RedisRateLimitMiddleware(client, scope, rl.RPS, rl.Burst, time.Duration(rl.WindowSeconds)*time.Second)
	}
	return middleware.RateLimitMiddleware(rl.RPS, rl.Burst)
}
