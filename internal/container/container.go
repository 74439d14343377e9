package container

import (
	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/config"
	"github.com/pesdo/placement-portal/internal/metrics"
	"github.com/pesdo/placement-portal/pkg/helpers"
)

// app-level container to share constructed infrastructure across packages.
// The router builds its modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	gcsClient   *storage.Client
	esClient    *elasticsearch.Client

	jwtManager *helpers.JWTManager

	emailPub *helpers.RabbitPublisher
	smsPub   *helpers.RabbitPublisher

	promRegistry *prometheus.Registry
	collector    metrics.MetricsCollector
)

func SetConfig(c *config.Config)    { cfg = c }
func GetConfig() *config.Config     { return cfg }
func SetLogger(l *logrus.Logger)    { logger = l }
func GetLogger() *logrus.Logger     { return logger }
func SetPGPool(p *pgxpool.Pool)     { pgPool = p }
func GetPGPool() *pgxpool.Pool      { return pgPool }
func SetRedis(r *redis.Client)      { redisClient = r }
func GetRedis() *redis.Client       { return redisClient }
func SetGCS(s *storage.Client)      { gcsClient = s }
func GetGCS() *storage.Client       { return gcsClient }
func SetES(c *elasticsearch.Client) { esClient = c }
func GetES() *elasticsearch.Client  { return esClient }
func SetJWT(m *helpers.JWTManager)  { jwtManager = m }
func GetJWT() *helpers.JWTManager   { return jwtManager }

// SetPublishers stores the email and SMS queue publishers; either may be nil.
func SetPublishers(email, sms *helpers.RabbitPublisher) { emailPub, smsPub = email, sms }
func GetEmailPub() *helpers.RabbitPublisher             { return emailPub }
func GetSMSPub() *helpers.RabbitPublisher               { return smsPub }

// SetMetrics installs the Prometheus registry and the collector recording into it.
func SetMetrics(reg *prometheus.Registry, c metrics.MetricsCollector) { promRegistry, collector = reg, c }
func GetPromRegistry() *prometheus.Registry                           { return promRegistry }

// GetMetrics never returns nil.
func GetMetrics() metrics.MetricsCollector {
	if collector == nil {
		return metrics.Nop{}
	}
	return collector
}
