package gcp

import (
	"errors"
	"testing"
)

func TestParseAndValidateObjectStorageConfig(t *testing.T) {
	cases := []struct {
		name         string
		mode         string
		host         string
		wantMode     ObjectStorageMode
		wantHost     string
		wantFallback bool
		wantErrCode  ObjectStorageConfigErrorCode
	}{
		{name: "default_gcs", wantMode: ObjectStorageModeGCS},
		{name: "explicit_gcs_ignores_host", mode: "gcs", host: "http://fake-gcs:4443", wantMode: ObjectStorageModeGCS, wantHost: "http://fake-gcs:4443"},
		{name: "explicit_emulator", mode: " GCS_Emulator ", host: "http://fake-gcs:4443/", wantMode: ObjectStorageModeGCSEmulator, wantHost: "http://fake-gcs:4443"},
		{name: "compat_fallback", host: "http://fake-gcs:4443", wantMode: ObjectStorageModeGCSEmulator, wantHost: "http://fake-gcs:4443", wantFallback: true},
		{name: "invalid_mode", mode: "local", wantMode: "local", wantErrCode: ObjectStorageConfigErrorInvalidMode},
		{name: "missing_host", mode: "gcs_emulator", wantMode: ObjectStorageModeGCSEmulator, wantErrCode: ObjectStorageConfigErrorMissingEmulatorHost},
		{name: "relative_host", mode: "gcs_emulator", host: "fake-gcs:4443", wantMode: ObjectStorageModeGCSEmulator, wantHost: "fake-gcs:4443", wantErrCode: ObjectStorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := ParseObjectStorageConfig(tc.mode, tc.host)
			if cfg.Mode != tc.wantMode {
				t.Fatalf("mode: want=%q got=%q", tc.wantMode, cfg.Mode)
			}
			if cfg.EmulatorHost != tc.wantHost {
				t.Fatalf("host: want=%q got=%q", tc.wantHost, cfg.EmulatorHost)
			}
			if cfg.CompatibilityFallback != tc.wantFallback {
				t.Fatalf("compatibility fallback: want=%v got=%v", tc.wantFallback, cfg.CompatibilityFallback)
			}

			err := ValidateObjectStorageConfig(cfg)
			if tc.wantErrCode == "" {
				if err != nil {
					t.Fatalf("ValidateObjectStorageConfig: %v", err)
				}
				return
			}
			var cfgErr *ObjectStorageConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Code != tc.wantErrCode {
				t.Fatalf("want error code %q, got %v", tc.wantErrCode, err)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	opts, err := clientOptions(ObjectStorageConfig{Mode: ObjectStorageModeGCS})
	if err != nil || len(opts) != 1 {
		t.Fatalf("gcs: opts=%d err=%v", len(opts), err)
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/gcp/key.json")
	opts, err = clientOptions(ObjectStorageConfig{Mode: ObjectStorageModeGCS})
	if err != nil || len(opts) != 2 {
		t.Fatalf("gcs with creds: opts=%d err=%v", len(opts), err)
	}

	if _, err := clientOptions(ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443"}); err != nil {
		t.Fatalf("emulator: %v", err)
	}

	var cfgErr *ObjectStorageConfigError
	if _, err := clientOptions(ObjectStorageConfig{Mode: "s3"}); !errors.As(err, &cfgErr) {
		t.Fatalf("unknown mode: got %v", err)
	}
}
