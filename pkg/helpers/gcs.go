package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// NewGCSClient creates a Google Cloud Storage client. If credsPath is empty, ADC is used.
func NewGCSClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	if credsPath == "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithCredentialsFile(credsPath))
}

// Bucket adapts one GCS bucket to the object operations the portal uses.
type Bucket struct {
	Client *storage.Client
	Name   string
}

func NewBucket(client *storage.Client, name string) *Bucket {
	return &Bucket{Client: client, Name: name}
}

func (b *Bucket) Put(ctx context.Context, name, contentType string, r io.Reader) error {
	wc := b.Client.Bucket(b.Name).Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // small files, single request
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.Client.Bucket(b.Name).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return names, err
		}
		names = append(names, attrs.Name)
	}
}

func (b *Bucket) Delete(ctx context.Context, name string) error {
	err := b.Client.Bucket(b.Name).Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b *Bucket) URL(name string) string { return PublicURL(b.Name, name) }

// PublicURL builds a public URL for an object (assuming public read access or signed URLs)
func PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}
