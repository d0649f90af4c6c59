// Package archive uploads experiment reports to Google Cloud Storage.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/op/go-logging"
	"google.golang.org/api/option"
)

var log = logging.MustGetLogger("archive")

// Bucket creates writers for objects.
type Bucket interface {
	NewWriter(ctx context.Context, object string) io.WriteCloser
}

// gcsBucket is a Cloud Storage bucket.
type gcsBucket struct {
	h *storage.BucketHandle
}

func (b gcsBucket) NewWriter(ctx context.Context, object string) io.WriteCloser {
	w := b.h.Object(object).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	return w
}

// Archive uploads files to a bucket.
type Archive struct {
	client *storage.Client
	bucket Bucket
	prefix string
}

// New creates an archive for a Cloud Storage bucket. An empty endpoint
// means the default one.
func New(ctx context.Context, bucket, prefix, endpoint string) (*Archive, error) {
	opts := []option.ClientOption{option.WithUserAgent("rootbench")}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &Archive{
		client: client,
		bucket: gcsBucket{client.Bucket(bucket)},
		prefix: prefix,
	}, nil
}

// NewWithBucket creates an archive using a bucket.
func NewWithBucket(b Bucket, prefix string) *Archive {
	return &Archive{bucket: b, prefix: prefix}
}

// ObjectName returns the object name of a file: the prefix and the
// file base name.
func ObjectName(prefix, fn string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filepath.Base(fn)
	}
	return path.Join(prefix, filepath.Base(fn))
}

// Upload uploads the files. It stops on the first error.
func (a *Archive) Upload(ctx context.Context, files ...string) error {
	for _, fn := range files {
		if err := a.upload(ctx, fn); err != nil {
			return fmt.Errorf("uploading %s: %w", fn, err)
		}
	}
	return nil
}

func (a *Archive) upload(ctx context.Context, fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	object := ObjectName(a.prefix, fn)
	w := a.bucket.NewWriter(ctx, object)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	log.Infof("Uploaded %s to %s", fn, object)
	return nil
}

// Close closes the storage client.
func (a *Archive) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}
