package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/portakall/retromeet/internal/observability"
	"github.com/portakall/retromeet/internal/platform/artifacts"
	"github.com/portakall/retromeet/internal/platform/gcp"
	"github.com/portakall/retromeet/internal/platform/logger"
)

var newBucketService = gcp.NewBucketService

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Backend      string
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "artifact store bootstrap failed"
	}
	return fmt.Sprintf(
		"artifact store bootstrap failed (code=%s backend=%q mode=%q emulator_host=%q): %v",
		e.Code,
		e.Backend,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveArtifactStore builds the configured artifact backend. The bucket is
// returned too so the caller can close it; it is nil for the local backend.
func resolveArtifactStore(ctx context.Context, log *logger.Logger, cfg Config) (artifacts.Store, gcp.BucketService, error) {
	metrics := observability.Current()
	backend := strings.TrimSpace(cfg.ArtifactStore)

	switch backend {
	case "", ArtifactStoreLocal:
		store, err := artifacts.NewLocalStore(log, cfg.ArtifactDir, cfg.ArtifactBaseURL)
		if err != nil {
			metrics.ObserveArtifactStoreBootstrap(ArtifactStoreLocal, "error", string(StorageProviderBootstrapErrorConnectFailed))
			return nil, nil, &StorageProviderBootstrapError{
				Code:    StorageProviderBootstrapErrorConnectFailed,
				Backend: ArtifactStoreLocal,
				Cause:   err,
			}
		}
		metrics.ObserveArtifactStoreBootstrap(ArtifactStoreLocal, "success", "none")
		log.Info("Artifact store selected", "backend", ArtifactStoreLocal, "dir", cfg.ArtifactDir)
		return store, nil, nil
	case ArtifactStoreGCS:
	default:
		err := &StorageProviderBootstrapError{
			Code:    StorageProviderBootstrapErrorInvalidMode,
			Backend: backend,
			Cause:   fmt.Errorf("unsupported ARTIFACT_STORE %q", backend),
		}
		metrics.ObserveArtifactStoreBootstrap(backend, "error", string(err.Code))
		log.Error("Artifact store selection failed", "backend", backend, "error_code", err.Code, "error", err)
		return nil, nil, err
	}

	storageCfg := gcp.ParseObjectStorageConfig(cfg.ObjectStorageMode, cfg.StorageEmulatorHost)

	log.Info(
		"Selecting object storage provider",
		"mode", storageCfg.Mode,
		"compatibility_fallback", storageCfg.CompatibilityFallback,
		"emulator_host", storageCfg.EmulatorHost,
	)

	bucket, err := newBucketService(ctx, log, storageCfg, cfg.ArtifactGCSBucket)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(storageCfg, err)
		code := storageProviderBootstrapErrorCode(classified)
		metrics.ObserveArtifactStoreBootstrap(ArtifactStoreGCS, "error", string(code))
		log.Error(
			"Object storage provider bootstrap failed",
			"mode", storageCfg.Mode,
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", code,
			"error", classified,
		)
		return nil, nil, classified
	}
	metrics.ObserveArtifactStoreBootstrap(ArtifactStoreGCS, "success", "none")
	return artifacts.NewGCSStore(bucket), bucket, nil
}

func classifyStorageProviderBootstrapError(storageCfg gcp.ObjectStorageConfig, err error) error {
	out := &StorageProviderBootstrapError{
		Code:         StorageProviderBootstrapErrorConnectFailed,
		Backend:      ArtifactStoreGCS,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			out.Code = StorageProviderBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			out.Code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			out.Code = StorageProviderBootstrapErrorInvalidEmulatorHost
		}
	}
	return out
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
