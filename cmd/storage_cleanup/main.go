package main

import (
	"context"
	"flag"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/config"
	"github.com/pesdo/placement-portal/internal/application/storage"
	"github.com/pesdo/placement-portal/pkg/helpers"
)

// storage_cleanup empties the portal's upload folders in the configured bucket.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-storage-cleanup", cfg.Env, cfg.LogLevel)

	dryRun := flag.Bool("dry-run", false, "list objects without deleting")
	bucket := flag.String("bucket", cfg.GCSBucket, "bucket name")
	prefixes := flag.String("prefixes", strings.Join(storage.PurgePrefixes, ","), "comma-separated prefixes")
	flag.Parse()
	if *bucket == "" {
		logger.Fatal("bucket is required (GCS_BUCKET or -bucket)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
	if err != nil {
		logger.WithError(err).Fatal("gcs client init failed")
	}
	defer func() { _ = client.Close() }()

	var list []string
	for _, p := range strings.Split(*prefixes, ",") {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}

	results, err := storage.NewCleaner(helpers.NewBucket(client, *bucket), logger).Purge(ctx, list, *dryRun)
	if err != nil {
		logger.WithError(err).Error("purge interrupted")
	}
	var found, deleted, failed int
	for _, r := range results {
		found += r.Found
		deleted += r.Deleted
		failed += len(r.Errors)
		for _, e := range r.Errors {
			logger.WithError(e).WithField("prefix", r.Prefix).Warn("object not deleted")
		}
	}
	logger.WithFields(logrus.Fields{
		"bucket":  *bucket,
		"found":   found,
		"deleted": deleted,
		"failed":  failed,
		"dry_run": *dryRun,
	}).Info("storage cleanup finished")
	if failed > 0 || err != nil {
		stop()
		logger.Exit(1)
	}
}
