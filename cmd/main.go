package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/config"
	"github.com/pesdo/placement-portal/internal/application/audit"
	"github.com/pesdo/placement-portal/internal/container"
	pginfra "github.com/pesdo/placement-portal/internal/infrastructure/postgres"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
	"github.com/pesdo/placement-portal/internal/metrics"
	"github.com/pesdo/placement-portal/internal/router"
	"github.com/pesdo/placement-portal/pkg/helpers"
	"github.com/pesdo/placement-portal/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, pginfra.PoolOptions{
		DSN:         cfg.PostgresDSN(),
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		MaxConnLife: cfg.DBMaxConnLife,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()
	if err := helpers.PingRedis(ctx, rdb); err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}

	// Optional infrastructure: the portal runs without uploads, login search
	// or queued notifications when these are not reachable.
	if cfg.GCSBucket != "" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			helpers.LogError(logger, "gcs client init failed; uploads disabled", err, nil)
		} else {
			defer func() { _ = gcsClient.Close() }()
			container.SetGCS(gcsClient)
		}
	}
	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			helpers.LogError(logger, "elasticsearch client init failed; login search disabled", err, nil)
		} else {
			if created, err := helpers.EnsureIndex(ctx, es, cfg.ESLoginIndex, audit.LoginIndexMapping); err != nil {
				helpers.LogError(logger, "login index bootstrap failed", err, logrus.Fields{"index": cfg.ESLoginIndex})
			} else if created {
				logger.WithField("index", cfg.ESLoginIndex).Info("login index created")
			}
			container.SetES(es)
		}
	}
	emailPub := dialPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue, logger)
	smsPub := dialPublisher(cfg.RabbitMQURL, cfg.RabbitMQSMSQueue, logger)
	defer emailPub.Close()
	defer smsPub.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(promReg)

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetJWT(helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL))
	container.SetPublishers(emailPub, smsPub)
	container.SetMetrics(promReg, collector)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(), middleware.RealIP())
	var accessLog *logrus.Logger
	if cfg.HTTPLogEnabled {
		accessLog = logger
	}
	r.Use(middleware.Observe(collector, accessLog))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	reg := router.NewRegistry(r)
	sessions := router.InitModules(reg)
	reg.RegisterAll()
	defer sessions.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-t.C:
				if n := sessions.Sweep(cfg.SessionIdleTTL); n > 0 {
					logger.WithField("dropped", n).Debug("idle session clients swept")
				}
			}
		}
	}()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	logger.Info("server exited properly")
}

func dialPublisher(url, queue string, logger *logrus.Logger) *helpers.RabbitPublisher {
	p, err := helpers.NewRabbitPublisher(url, queue)
	if err != nil {
		helpers.LogError(logger, "rabbitmq publisher unavailable", err, logrus.Fields{"queue": queue})
		return nil
	}
	return p
}
