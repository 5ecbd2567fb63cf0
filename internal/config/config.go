package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings. Values are layered: defaults, then an
// optional .env file, then process environment. Command-line flags in
// cmd/ecobingo override the result.
type Config struct {
	ListenAddr  string
	DBPath      string
	LogLevel    string
	LogFormat   string // "text" or "json"
	HTTPLogging bool
	BaseURL     string

	JWTSecret string
	TokenTTL  time.Duration

	FraudThreshold float64
	FraudScope     string // "global" or "user"
	SignatureTTL   time.Duration

	RedisAddr     string // empty selects the in-process cache
	RedisPassword string
	RedisDB       int

	PhotoBackend string // "fs" or "s3"
	PhotoDir     string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string

	KafkaBrokers []string // empty disables event publishing
	KafkaTopic   string
}

const (
	LogFormatText = "text"
	LogFormatJSON = "json"

	FraudScopeGlobal = "global"
	FraudScopeUser   = "user"

	PhotoBackendFS = "fs"
	PhotoBackendS3 = "s3"
)

const envPrefix = "ECOBINGO_"

// Default returns the built-in configuration
func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		DBPath:         "ecobingo.db",
		LogLevel:       "info",
		LogFormat:      LogFormatText,
		TokenTTL:       24 * time.Hour,
		FraudThreshold: 85,
		FraudScope:     FraudScopeGlobal,
		SignatureTTL:   30 * 24 * time.Hour,
		PhotoBackend:   PhotoBackendFS,
		PhotoDir:       "uploads",
		S3Region:       "auto",
		KafkaTopic:     "ecobingo.events",
	}
}

// Load resolves configuration from defaults, envFile (if it exists) and
// the environment. An empty envFile skips the file layer.
func Load(envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	str("LISTEN_ADDR", &cfg.ListenAddr)
	str("DB_PATH", &cfg.DBPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("BASE_URL", &cfg.BaseURL)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("FRAUD_SCOPE", &cfg.FraudScope)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	str("PHOTO_BACKEND", &cfg.PhotoBackend)
	str("PHOTO_DIR", &cfg.PhotoDir)
	str("S3_BUCKET", &cfg.S3Bucket)
	str("S3_REGION", &cfg.S3Region)
	str("S3_ENDPOINT", &cfg.S3Endpoint)
	str("S3_ACCESS_KEY", &cfg.S3AccessKey)
	str("S3_SECRET_KEY", &cfg.S3SecretKey)
	str("KAFKA_TOPIC", &cfg.KafkaTopic)

	if v, ok := lookup("HTTP_LOGGING"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_LOGGING: %w", envPrefix, err)
		}
		cfg.HTTPLogging = b
	}
	if v, ok := lookup("FRAUD_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sFRAUD_THRESHOLD: %w", envPrefix, err)
		}
		cfg.FraudThreshold = f
	}
	if v, ok := lookup("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", envPrefix, err)
		}
		cfg.RedisDB = n
	}
	for key, dst := range map[string]*time.Duration{
		"TOKEN_TTL":     &cfg.TokenTTL,
		"SIGNATURE_TTL": &cfg.SignatureTTL,
	} {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok {
		cfg.KafkaBrokers = splitAndTrim(v)
	}
	return nil
}

// Validate checks cross-field constraints
func (c Config) Validate() error {
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.FraudThreshold <= 0 || c.FraudThreshold > 100 {
		return fmt.Errorf("fraud threshold must be in (0, 100], got %v", c.FraudThreshold)
	}
	switch c.FraudScope {
	case FraudScopeGlobal, FraudScopeUser:
	default:
		return fmt.Errorf("unknown fraud scope %q", c.FraudScope)
	}
	switch c.PhotoBackend {
	case PhotoBackendFS:
		if c.PhotoDir == "" {
			return errors.New("photo dir is required for the fs backend")
		}
	case PhotoBackendS3:
		if c.S3Bucket == "" {
			return errors.New("s3 bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown photo backend %q", c.PhotoBackend)
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
