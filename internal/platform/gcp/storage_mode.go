package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

type ObjectStorageConfig struct {
	Mode                  ObjectStorageMode
	EmulatorHost          string
	CompatibilityFallback bool
}

func (cfg ObjectStorageConfig) IsEmulatorMode() bool {
	return cfg.Mode == ObjectStorageModeGCSEmulator
}

type ObjectStorageConfigErrorCode string

const (
	ObjectStorageConfigErrorInvalidMode         ObjectStorageConfigErrorCode = "invalid_mode"
	ObjectStorageConfigErrorMissingEmulatorHost ObjectStorageConfigErrorCode = "missing_emulator_host"
	ObjectStorageConfigErrorInvalidEmulatorHost ObjectStorageConfigErrorCode = "invalid_emulator_host"
)

type ObjectStorageConfigError struct {
	Code         ObjectStorageConfigErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *ObjectStorageConfigError) Error() string {
	if e == nil {
		return "artifact bucket: invalid object storage config"
	}
	var detail string
	switch e.Code {
	case ObjectStorageConfigErrorInvalidMode:
		detail = fmt.Sprintf("OBJECT_STORAGE_MODE=%q is not one of %q or %q", e.Mode, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	case ObjectStorageConfigErrorMissingEmulatorHost:
		detail = "the emulator mode needs STORAGE_EMULATOR_HOST"
	case ObjectStorageConfigErrorInvalidEmulatorHost:
		detail = fmt.Sprintf("STORAGE_EMULATOR_HOST=%q must be an absolute URL such as http://fake-gcs:4443", e.EmulatorHost)
	default:
		detail = "invalid object storage config"
	}
	return "artifact bucket: " + detail
}

func (e *ObjectStorageConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ParseObjectStorageConfig turns the raw OBJECT_STORAGE_MODE and
// STORAGE_EMULATOR_HOST values into a config. An empty mode selects the
// emulator when a host is given and real GCS otherwise. The result is not
// validated; an unknown mode is kept so validation can report it.
func ParseObjectStorageConfig(rawMode, emulatorHost string) ObjectStorageConfig {
	cfg := ObjectStorageConfig{
		Mode:         ObjectStorageMode(strings.ToLower(strings.TrimSpace(rawMode))),
		EmulatorHost: strings.TrimRight(strings.TrimSpace(emulatorHost), "/"),
	}
	if cfg.Mode == "" {
		cfg.Mode = ObjectStorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
			cfg.CompatibilityFallback = true
		}
	}
	return cfg
}

// ValidateObjectStorageConfig checks a parsed config before a client is
// built from it.
func ValidateObjectStorageConfig(cfg ObjectStorageConfig) error {
	fail := func(code ObjectStorageConfigErrorCode, cause error) error {
		return &ObjectStorageConfigError{Code: code, Mode: string(cfg.Mode), EmulatorHost: cfg.EmulatorHost, Cause: cause}
	}
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		return nil
	case ObjectStorageModeGCSEmulator:
		if cfg.EmulatorHost == "" {
			return fail(ObjectStorageConfigErrorMissingEmulatorHost, nil)
		}
		u, err := url.Parse(cfg.EmulatorHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fail(ObjectStorageConfigErrorInvalidEmulatorHost, err)
		}
		return nil
	default:
		return fail(ObjectStorageConfigErrorInvalidMode, nil)
	}
}
