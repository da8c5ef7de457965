package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
)

const (
	pingTimeout        = 5 * time.Second
	defaultPublicBase  = "https://storage.googleapis.com"
	defaultCacheHeader = "public, max-age=86400"
)

var errClientNotInitialized = errors.New("gcs client not initialized")

// Client uploads and removes objects in a single bucket.
type Client struct {
	svc           *storage.Service
	defaultBucket string
	publicBase    string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// UploadedObject describes a stored blob.
type UploadedObject struct {
	Bucket string
	Name   string
	URL    string
	Size   uint64
}

// NewClient builds a storage client from service-account JSON, a credentials
// file, or ambient credentials, then verifies bucket access.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	opts := gcp.ClientOptions(append([]option.ClientOption{option.WithScopes(storage.DevstorageReadWriteScope)}, extra...)...)
	client, err := newClient(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", client.defaultBucket), "gcs client initialized")
	}
	return client, nil
}

func newClient(ctx context.Context, cfg config.GCSConfig, opts ...option.ClientOption) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage service: %w", err)
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		base = defaultPublicBase
	}
	return &Client{svc: svc, defaultBucket: bucket, publicBase: base}, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Close() error {
	return nil
}

// Ping lists at most one object to confirm the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.svc.Objects.List(c.defaultBucket).MaxResults(1).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcs object check failed: %w", err)
	}
	return nil
}

// Upload streams body to object and returns its public URL.
func (c *Client) Upload(ctx context.Context, object, contentType string, body io.Reader) (*UploadedObject, error) {
	if c == nil || c.svc == nil {
		return nil, errClientNotInitialized
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return nil, errors.New("object name is required")
	}
	if body == nil {
		return nil, errors.New("object body is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stored, err := c.svc.Objects.
		Insert(c.defaultBucket, &storage.Object{
			Name:         object,
			ContentType:  contentType,
			CacheControl: defaultCacheHeader,
		}).
		Media(body, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", object, err)
	}

	name := object
	if stored != nil && stored.Name != "" {
		name = stored.Name
	}
	out := &UploadedObject{
		Bucket: c.defaultBucket,
		Name:   name,
		URL:    c.ObjectURL(name),
	}
	if stored != nil {
		out.Size = stored.Size
	}
	return out, nil
}

// DeleteObject removes object. A missing object is not an error.
func (c *Client) DeleteObject(ctx context.Context, object string) error {
	if c == nil || c.svc == nil {
		return errClientNotInitialized
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return errors.New("object name is required")
	}
	if err := c.svc.Objects.Delete(c.defaultBucket, object).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("deleting %s: %w", object, err)
	}
	return nil
}

// ObjectURL is the public download URL for an object in the default bucket.
func (c *Client) ObjectURL(object string) string {
	if c == nil {
		return ""
	}
	segments := strings.Split(strings.TrimLeft(object, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return c.publicBase + "/" + path.Join(url.PathEscape(c.defaultBucket), strings.Join(segments, "/"))
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code == http.StatusNotFound
	}
	return false
}
