package gcp

import (
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/portakall/retromeet/internal/platform/envutil"
)

// clientOptions builds the storage client options for a mode. Real GCS takes
// credentials from GOOGLE_APPLICATION_CREDENTIALS_JSON (inline) or
// GOOGLE_APPLICATION_CREDENTIALS (a path), falling back to the ambient
// default credentials. The emulator runs unauthenticated.
func clientOptions(cfg ObjectStorageConfig) ([]option.ClientOption, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
		if creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""); creds != "" {
			return append(opts, option.WithCredentialsJSON([]byte(creds))), nil
		}
		if creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS", ""); creds != "" {
			if strings.HasPrefix(creds, "{") {
				return append(opts, option.WithCredentialsJSON([]byte(creds))), nil
			}
			return append(opts, option.WithCredentialsFile(creds)), nil
		}
		return opts, nil
	case ObjectStorageModeGCSEmulator:
		// the storage client only honours the emulator through this variable
		if err := os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost); err != nil {
			return nil, err
		}
		return []option.ClientOption{option.WithoutAuthentication()}, nil
	default:
		return nil, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}
