package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.FraudThreshold != 85 {
		t.Errorf("expected threshold 85, got %v", cfg.FraudThreshold)
	}
	if cfg.FraudScope != FraudScopeGlobal {
		t.Errorf("expected global scope, got %q", cfg.FraudScope)
	}
	if cfg.SignatureTTL != 30*24*time.Hour {
		t.Errorf("expected 30 day signature ttl, got %v", cfg.SignatureTTL)
	}
	if cfg.PhotoBackend != PhotoBackendFS {
		t.Errorf("expected fs backend, got %q", cfg.PhotoBackend)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ECOBINGO_LISTEN_ADDR", ":9999")
	t.Setenv("ECOBINGO_FRAUD_THRESHOLD", "90.5")
	t.Setenv("ECOBINGO_FRAUD_SCOPE", "user")
	t.Setenv("ECOBINGO_HTTP_LOGGING", "true")
	t.Setenv("ECOBINGO_REDIS_DB", "3")
	t.Setenv("ECOBINGO_SIGNATURE_TTL", "2h")
	t.Setenv("ECOBINGO_KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("ECOBINGO_LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":9999" {
		t.Errorf("expected :9999, got %q", cfg.ListenAddr)
	}
	if cfg.FraudThreshold != 90.5 {
		t.Errorf("expected 90.5, got %v", cfg.FraudThreshold)
	}
	if cfg.FraudScope != FraudScopeUser {
		t.Errorf("expected user scope, got %q", cfg.FraudScope)
	}
	if !cfg.HTTPLogging {
		t.Error("expected HTTP logging enabled")
	}
	if cfg.RedisDB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.RedisDB)
	}
	if cfg.SignatureTTL != 2*time.Hour {
		t.Errorf("expected 2h, got %v", cfg.SignatureTTL)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("expected json log format, got %q", cfg.LogFormat)
	}
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.KafkaBrokers, want) {
		t.Errorf("expected %v, got %v", want, cfg.KafkaBrokers)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("ECOBINGO_DB_PATH=/tmp/from-file.db\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ECOBINGO_DB_PATH") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/from-file.db" {
		t.Errorf("expected db path from file, got %q", cfg.DBPath)
	}
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"ECOBINGO_FRAUD_THRESHOLD", "high"},
		{"ECOBINGO_FRAUD_THRESHOLD", "150"},
		{"ECOBINGO_FRAUD_SCOPE", "team"},
		{"ECOBINGO_HTTP_LOGGING", "sometimes"},
		{"ECOBINGO_SIGNATURE_TTL", "30 days"},
		{"ECOBINGO_PHOTO_BACKEND", "ftp"},
		{"ECOBINGO_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	cfg := Default()
	cfg.PhotoBackend = PhotoBackendS3
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for s3 backend without bucket")
	}
	cfg.S3Bucket = "photos"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
