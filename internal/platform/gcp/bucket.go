package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

// StoredObject describes an uploaded media object.
type StoredObject struct {
	URL      string
	Key      string
	Size     int64
	MimeType string
	Name     string
}

type BucketService interface {
	Upload(ctx context.Context, key, mimeType string, r io.Reader) (StoredObject, error)
	// Delete removes every key it can and returns the keys it could not.
	// A missing object counts as deleted.
	Delete(ctx context.Context, keys []string) ([]string, error)
	PublicURL(key string) string
}

type BucketConfig struct {
	Name      string
	CDNDomain string
	Storage   ObjectStorageConfig
}

func BucketConfigFromEnv() (BucketConfig, error) {
	storageCfg, err := ResolveObjectStorageConfig(os.Getenv)
	if err != nil {
		return BucketConfig{}, fmt.Errorf("resolve object storage config: %w", err)
	}
	name := strings.TrimSpace(os.Getenv("MEDIA_GCS_BUCKET_NAME"))
	if name == "" {
		return BucketConfig{}, fmt.Errorf("missing env var MEDIA_GCS_BUCKET_NAME")
	}
	return BucketConfig{
		Name:      name,
		CDNDomain: strings.TrimSpace(os.Getenv("MEDIA_CDN_DOMAIN")),
		Storage:   storageCfg,
	}, nil
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	storageMode   ObjectStorageMode
	emulatorHost  string
	bucket        string
	cdnDomain     string
	publicBaseURL string
}

func NewBucketService(log *logger.Logger, cfg BucketConfig) (BucketService, error) {
	if err := ValidateObjectStorageConfig(cfg.Storage); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	serviceLog := log.With("service", "BucketService")

	publicBaseURL, publicBaseSource, err := resolveObjectStoragePublicBaseURL(cfg.Storage)
	if err != nil {
		return nil, err
	}

	stClient, err := newStorageClientForMode(context.Background(), cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info(
		"Object storage initialized",
		"mode", cfg.Storage.Mode,
		"mode_source", cfg.Storage.ModeSource(),
		"emulator_host", cfg.Storage.EmulatorHost,
		"public_base_source", publicBaseSource,
		"public_base_url", publicBaseURL,
		"bucket", cfg.Name,
	)

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		storageMode:   cfg.Storage.Mode,
		emulatorHost:  strings.TrimRight(strings.TrimSpace(cfg.Storage.EmulatorHost), "/"),
		bucket:        cfg.Name,
		cdnDomain:     cfg.CDNDomain,
		publicBaseURL: publicBaseURL,
	}, nil
}

func newStorageClientForMode(ctx context.Context, storageCfg ObjectStorageConfig) (*storage.Client, error) {
	switch storageCfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/")
		// The storage client only honours the emulator through this variable.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{
			Code: ObjectStorageConfigErrorInvalidMode,
			Mode: string(storageCfg.Mode),
		}
	}
}

func resolveObjectStoragePublicBaseURL(storageCfg ObjectStorageConfig) (baseURL string, source string, err error) {
	raw := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_PUBLIC_BASE_URL"))
	if raw != "" {
		parsed, parseErr := url.Parse(raw)
		if parseErr != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return "", "", fmt.Errorf(
				"invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443",
				raw,
			)
		}
		return strings.TrimRight(raw, "/"), "object_storage_public_base_url", nil
	}
	if storageCfg.IsEmulatorMode() {
		return strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/"), "storage_emulator_host", nil
	}
	return "", "gcs_default", nil
}

func (bs *bucketService) Upload(ctx context.Context, key, mimeType string, r io.Reader) (StoredObject, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return StoredObject{}, fmt.Errorf("upload: empty key")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(bs.bucket).Object(key).NewWriter(ctx)
	w.ContentType = mimeType
	if w.ContentType == "" {
		w.ContentType = contentTypeForKey(key)
	}
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return StoredObject{}, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return StoredObject{}, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return StoredObject{
		URL:      bs.PublicURL(key),
		Key:      key,
		Size:     n,
		MimeType: w.ContentType,
		Name:     key[strings.LastIndex(key, "/")+1:],
	}, nil
}

func (bs *bucketService) Delete(ctx context.Context, keys []string) ([]string, error) {
	var (
		failed []string
		errs   []error
	)
	for _, key := range keys {
		key = strings.TrimLeft(strings.TrimSpace(key), "/")
		if key == "" {
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := bs.storageClient.Bucket(bs.bucket).Object(key).Delete(dctx)
		cancel()
		if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
			continue
		}
		failed = append(failed, key)
		errs = append(errs, fmt.Errorf("delete GCS object %q in bucket %q: %w", key, bs.bucket, err))
	}
	if len(failed) > 0 {
		bs.log.Warn("Object delete incomplete", "failed", len(failed), "requested", len(keys))
	}
	return failed, errors.Join(errs...)
}

func (bs *bucketService) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
	}
	if bs.storageMode == ObjectStorageModeGCSEmulator {
		if u := bs.emulatorMediaURL(key); u != "" {
			return u
		}
	}
	if bs.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", bs.publicBaseURL, bs.bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucket, key)
}

func (bs *bucketService) emulatorMediaURL(key string) string {
	base := strings.TrimRight(strings.TrimSpace(bs.publicBaseURL), "/")
	if base == "" {
		base = strings.TrimRight(strings.TrimSpace(bs.emulatorHost), "/")
	}
	if base == "" {
		return ""
	}
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s?alt=media",
		base,
		url.PathEscape(bs.bucket),
		url.PathEscape(key),
	)
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".svg"):
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
