package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/config"
	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
	pginfra "github.com/pesdo/placement-portal/internal/infrastructure/postgres"
	"github.com/pesdo/placement-portal/pkg/helpers"
)

// seed creates a confirmed admin account so the admin console can be reached
// on a fresh database. Running it again leaves existing rows untouched.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env, cfg.LogLevel)

	email := flag.String("email", os.Getenv("SEED_ADMIN_EMAIL"), "admin email")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin password (min 8 chars)")
	super := flag.Bool("super", true, "grant super_admin")
	flag.Parse()
	if *email == "" || *password == "" {
		logger.Fatal("email and password are required (flags or SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD)")
	}

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, pginfra.PoolOptions{DSN: cfg.PostgresDSN(), MaxConns: 2, MinConns: 1, MaxConnLife: cfg.DBMaxConnLife})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()
	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	identities := pginfra.NewIdentityRepository(pool)
	profiles := pginfra.NewProfileRepository(pool)
	provider := authprovider.NewService(identities, nil, nil, logger, false)

	ident, err := provider.SignUp(ctx, *email, *password, map[string]any{"userType": string(entity.RoleAdmin)})
	switch {
	case errors.Is(err, authprovider.ErrUserAlreadyExists):
		if ident, err = identities.GetByEmail(ctx, *email); err != nil {
			logger.WithError(err).Fatal("failed to load existing identity")
		}
		logger.WithField("id", ident.ID).Info("identity exists; keeping its password")
	case err != nil:
		logger.WithError(err).Fatal("failed to create identity")
	}
	if err := provider.ConfirmEmail(ctx, ident.ID); err != nil {
		logger.WithError(err).Fatal("failed to confirm email")
	}

	role := "admin"
	if *super {
		role = entity.SuperAdmin
	}
	p := &entity.AdminProfile{ID: ident.ID, Email: ident.Email, Role: role, Tag: string(entity.RoleAdmin)}
	if err := profiles.CreateAdmin(ctx, p); err != nil && !errors.Is(err, repository.ErrDuplicateKey) {
		logger.WithError(err).Fatal("failed to create admin profile")
	}
	logger.WithFields(logrus.Fields{"id": ident.ID, "email": ident.Email, "role": role}).Info("admin seeded")
}
