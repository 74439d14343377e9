package router

import (
	"github.com/pesdo/placement-portal/internal/application/account"
	"github.com/pesdo/placement-portal/internal/application/audit"
	"github.com/pesdo/placement-portal/internal/application/notify"
	"github.com/pesdo/placement-portal/internal/application/session"
	"github.com/pesdo/placement-portal/internal/application/storage"
	"github.com/pesdo/placement-portal/internal/container"
	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
	pginfra "github.com/pesdo/placement-portal/internal/infrastructure/postgres"
	handlers "github.com/pesdo/placement-portal/internal/interface/http"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
	"github.com/pesdo/placement-portal/internal/router/modules"
	"github.com/pesdo/placement-portal/pkg/helpers"
)

// Deps is everything the HTTP modules are built from.
type Deps struct {
	Provider *authprovider.Service
	Sessions *session.Registry
	Audit    *audit.Logger
	Account  *account.Service
	Notifier *notify.Notifier
	Uploader *storage.Uploader
	Cookies  *helpers.Manager
}

// queue keeps a nil publisher a nil interface so the notifier sees the
// queue as unavailable.
func queue(p *helpers.RabbitPublisher) notify.Publisher {
	if p == nil {
		return nil
	}
	return p
}

func buildDeps() Deps {
	cfg := container.GetConfig()
	log := container.GetLogger()
	m := container.GetMetrics()
	pool := container.GetPGPool()

	identities := pginfra.NewIdentityRepository(pool)
	profiles := pginfra.NewProfileRepository(pool)
	auditLog := audit.NewLogger(pginfra.NewAuditRepository(pool), container.GetES(), cfg.ESLoginIndex, log)

	provider := authprovider.NewService(identities, authprovider.NewRedisSessionStore(container.GetRedis()), container.GetJWT(), log, cfg.RequireConfirmedEmail)

	attacher := &session.Attacher{
		Profiles:   profiles,
		OpTimeout:  cfg.SessionOpTimeout,
		Retries:    cfg.ProfileRetries,
		RetryDelay: cfg.ProfileRetryDelay,
		Logger:     log,
		Metrics:    m,
	}
	resolver := session.NewResolver(profiles, cfg.SessionOpTimeout)
	opts := session.Options{
		MismatchHold:  cfg.MismatchHold,
		OpTimeout:     cfg.SessionOpTimeout,
		AdminFlagKeys: cfg.AdminFlagKeys(),
	}
	sessions := session.NewRegistry(func(deviceID string) *session.Client {
		return session.NewClient(provider.NewClient(deviceID), session.Deps{
			Profiles: profiles,
			Resolver: resolver,
			Attacher: attacher,
			Audit:    auditLog,
			Metrics:  m,
			Logger:   log,
		}, opts)
	})

	notifier := notify.NewNotifier(queue(container.GetEmailPub()), queue(container.GetSMSPub()), cfg.MailSendEnabled, cfg.SMSSendEnabled, m, log)

	var uploader *storage.Uploader
	if gcs := container.GetGCS(); gcs != nil && cfg.GCSBucket != "" {
		uploader = storage.NewUploader(helpers.NewBucket(gcs, cfg.GCSBucket), log)
	}

	return Deps{
		Provider: provider,
		Sessions: sessions,
		Audit:    auditLog,
		Account: &account.Service{
			Provider:   provider,
			Identities: identities,
			Profiles:   profiles,
			Tokens:     account.NewTokenStore(container.GetRedis()),
			Mail:       notifier,
			Audit:      auditLog,
			Cfg:        cfg,
			Logger:     log,
		},
		Notifier: notifier,
		Uploader: uploader,
		Cookies:  helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure),
	}
}

// InitModules builds the application services and registers every module.
// The returned registry owns the per-device session clients.
func InitModules(r *Registry) *session.Registry {
	cfg := container.GetConfig()
	log := container.GetLogger()
	d := buildDeps()

	limits := modules.Limits{
		APIMax:    cfg.APIRateLimit,
		LoginMax:  cfg.LoginRateLimit,
		Window:    cfg.RateLimitWindow,
		Validator: d.Provider,
	}
	if cfg.RateLimitUseRedis {
		limits.RDB = container.GetRedis()
	}

	r.Use(middleware.Device(d.Cookies))

	r.Add(modules.NewSessionModule(handlers.NewSessionHandler(d.Sessions, d.Uploader, d.Cookies, log), limits))
	r.Add(modules.NewAccountModule(handlers.NewAccountHandler(d.Account, log), limits))
	r.Add(modules.NewNotifyModule(handlers.NewNotifyHandler(d.Notifier, log), limits))
	r.Add(modules.NewAdminModule(handlers.NewAdminHandler(d.Sessions, d.Audit, log), limits))
	metricsMod := modules.NewMetricsModule(nil)
	if reg := container.GetPromRegistry(); cfg.MetricsEnabled && reg != nil {
		metricsMod.Gatherer = reg
	}
	r.AddRoot(metricsMod)
	return d.Sessions
}
