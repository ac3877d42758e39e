package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/draftsync-backend/internal/platform/gcp"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

var newBucketService = gcp.NewBucketService

type StorageBootstrapErrorCode string

const (
	StorageBootstrapInvalidMode         StorageBootstrapErrorCode = "invalid_mode"
	StorageBootstrapMissingEmulatorHost StorageBootstrapErrorCode = "missing_emulator_host"
	StorageBootstrapInvalidEmulatorHost StorageBootstrapErrorCode = "invalid_emulator_host"
	StorageBootstrapConnectFailed       StorageBootstrapErrorCode = "connect_failed"
)

type StorageBootstrapError struct {
	Code         StorageBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageBootstrapError) Error() string {
	if e == nil {
		return "media storage bootstrap failed"
	}
	return fmt.Sprintf("media storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code, e.Mode, e.EmulatorHost, e.Cause)
}

func (e *StorageBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

var configErrorCodes = map[gcp.ObjectStorageConfigErrorCode]StorageBootstrapErrorCode{
	gcp.ObjectStorageConfigErrorInvalidMode:         StorageBootstrapInvalidMode,
	gcp.ObjectStorageConfigErrorMissingEmulatorHost: StorageBootstrapMissingEmulatorHost,
	gcp.ObjectStorageConfigErrorInvalidEmulatorHost: StorageBootstrapInvalidEmulatorHost,
}

func resolveBucketService(log *logger.Logger, cfg gcp.BucketConfig) (gcp.BucketService, error) {
	storageCfg := cfg.Storage
	log.Info(
		"Selecting media storage provider",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.ModeSource(),
		"emulator_host", storageCfg.EmulatorHost,
		"bucket", cfg.Name,
	)
	bucket, err := newBucketService(log, cfg)
	if err != nil {
		classified := classifyStorageBootstrapError(storageCfg, err)
		log.Error("Media storage bootstrap failed", "code", classified.Code, "error", err)
		return nil, classified
	}
	return bucket, nil
}

func classifyStorageBootstrapError(storageCfg gcp.ObjectStorageConfig, err error) *StorageBootstrapError {
	out := &StorageBootstrapError{
		Code:         StorageBootstrapConnectFailed,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		if code, ok := configErrorCodes[cfgErr.Code]; ok {
			out.Code = code
		}
	}
	return out
}

// storedPrefix is the url prefix every stored object shares, or "" when the
// public url shape has the key in the middle (emulator media links).
func storedPrefix(bucket gcp.BucketService) string {
	const probe = "__probe__"
	u := bucket.PublicURL(probe)
	if !strings.HasSuffix(u, "/"+probe) {
		return ""
	}
	return strings.TrimSuffix(u, probe)
}
