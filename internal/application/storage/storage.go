// Package storage uploads profile assets and purges the portal's buckets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConfigured    = errors.New("storage not configured")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// PurgePrefixes are the folders the cleanup command empties.
var PurgePrefixes = []string{"profiles/", "employers/", "legal-documents/", "permits/", "company-logos/"}

// ObjectStore is the bucket surface this package needs.
type ObjectStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Uploader struct {
	Store  ObjectStore
	Logger *logrus.Logger
}

func NewUploader(store ObjectStore, log *logrus.Logger) *Uploader {
	return &Uploader{Store: store, Logger: log}
}

// ProfilePicture stores an image under profiles/<uid>/ and returns its public URL.
// The extension comes from filename when present, else from contentType.
func (u *Uploader) ProfilePicture(ctx context.Context, uid, filename, contentType string, r io.Reader) (string, error) {
	if u == nil || u.Store == nil {
		return "", ErrNotConfigured
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	def, ok := imageExt[ct]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, contentType)
	}
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = def
	}
	name := "profiles/" + uid + "/" + uuid.NewString() + ext
	if err := u.Store.Put(ctx, name, ct, r); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if u.Logger != nil {
		u.Logger.WithFields(logrus.Fields{"uid": uid, "object": name}).Info("profile picture uploaded")
	}
	return u.Store.URL(name), nil
}

// PurgeResult is the outcome for one prefix.
type PurgeResult struct {
	Prefix  string
	Found   int
	Deleted int
	Errors  []error
}

type Cleaner struct {
	Store  ObjectStore
	Logger *logrus.Logger
}

func NewCleaner(store ObjectStore, log *logrus.Logger) *Cleaner {
	return &Cleaner{Store: store, Logger: log}
}

// Purge deletes every object under each prefix. Per-object failures are
// collected; a listing failure is recorded for that prefix and the rest continue.
// With dryRun nothing is deleted.
func (c *Cleaner) Purge(ctx context.Context, prefixes []string, dryRun bool) ([]PurgeResult, error) {
	if c == nil || c.Store == nil {
		return nil, ErrNotConfigured
	}
	out := make([]PurgeResult, 0, len(prefixes))
	for _, prefix := range prefixes {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res := PurgeResult{Prefix: prefix}
		names, err := c.Store.List(ctx, prefix)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("list %s: %w", prefix, err))
			out = append(out, res)
			continue
		}
		res.Found = len(names)
		for _, name := range names {
			if dryRun {
				continue
			}
			if err := c.Store.Delete(ctx, name); err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("delete %s: %w", name, err))
				continue
			}
			res.Deleted++
		}
		if c.Logger != nil {
			c.Logger.WithFields(logrus.Fields{
				"prefix":  prefix,
				"found":   res.Found,
				"deleted": res.Deleted,
				"errors":  len(res.Errors),
				"dry_run": dryRun,
			}).Info("prefix purged")
		}
		out = append(out, res)
	}
	return out, nil
}
