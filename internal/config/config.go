// Package config loads portal settings.
//
// SOURCES (highest priority first):
//  1. Environment variables
//  2. The YAML file named by CONFIG_FILE, written with the same keys as the
//     environment (JWT_SECRET: ..., APPSHEET_TABLE: ...)
//  3. Defaults in code
//
// Durations accept Go syntax ("90s", "10m") and whole days ("7d").
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	BackendDynamo = "dynamodb"
	BackendSQLite = "sqlite"

	minSecretLen = 16
)

// AppSheetConfig locates the AppSheet table mirrored on every change.
type AppSheetConfig struct {
	AppID   string
	APIKey  string
	Table   string
	Timeout time.Duration
}

// SheetsConfig locates the staff spreadsheet.
type SheetsConfig struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	CredentialsFile    string
	ApplicationTab     string
	PNMTab             string
	MetaTTL            time.Duration
}

// Config is everything the portal needs to start.
type Config struct {
	Port        int
	Environment string
	LogLevel    string

	JWTSecret    string
	JWTExpiresIn time.Duration

	StoreBackend     string
	DynamoTable      string
	DynamoEmailIndex string
	SQLitePath       string
	AWSRegion        string
	AWSEndpointURL   string

	S3Bucket         string
	CloudFrontDomain string
	UploadURLTTL     time.Duration
	MaxBodyBytes     int64
	PublicBaseURL    string

	GoogleClientID string

	AppSheet AppSheetConfig
	Sheets   SheetsConfig

	SyncQueueSize int
	SyncWorkers   int

	PublicLock         bool
	PreviewKey         string
	CORSAllowedOrigins []string
}

// Load reads the configuration. It fails only when CONFIG_FILE is set and
// unreadable or a value cannot be parsed; call Validate for required fields.
func Load() (*Config, error) {
	src := source{file: map[string]string{}}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}
	return src.load()
}

func (s *source) load() (*Config, error) {
	cfg := &Config{
		Port:        s.integer("PORT", 8080),
		Environment: strings.ToLower(s.str("ENVIRONMENT", EnvDevelopment)),
		LogLevel:    s.str("LOG_LEVEL", "info"),

		JWTSecret:    s.str("JWT_SECRET", ""),
		JWTExpiresIn: s.duration("JWT_EXPIRES_IN", 7*24*time.Hour),

		StoreBackend:     strings.ToLower(s.str("STORE_BACKEND", BackendDynamo)),
		DynamoTable:      s.str("DDB_TABLE", ""),
		DynamoEmailIndex: s.str("DDB_EMAIL_INDEX", "GSI1"),
		SQLitePath:       s.str("SQLITE_PATH", "data/portal.db"),
		AWSRegion:        s.str("AWS_REGION", "us-east-2"),
		AWSEndpointURL:   s.str("AWS_ENDPOINT_URL", ""),

		S3Bucket:         s.str("S3_BUCKET", ""),
		CloudFrontDomain: s.str("CLOUDFRONT_DOMAIN", ""),
		UploadURLTTL:     s.duration("UPLOAD_URL_TTL", 60*time.Second),
		MaxBodyBytes:     int64(s.integer("MAX_BODY_BYTES", 30<<20)),
		PublicBaseURL:    strings.TrimRight(s.str("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		GoogleClientID: s.str("GOOGLE_CLIENT_ID", ""),

		AppSheet: AppSheetConfig{
			AppID:   s.str("APPSHEET_APP_ID", ""),
			APIKey:  s.str("APPSHEET_API_KEY", ""),
			Table:   s.str("APPSHEET_TABLE", ""),
			Timeout: s.duration("APPSHEET_TIMEOUT", 10*time.Second),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:      s.str("GOOGLE_SHEETS_SPREADSHEET_ID", ""),
			ServiceAccountJSON: s.str("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
			CredentialsFile:    s.str("GOOGLE_APPLICATION_CREDENTIALS", ""),
			ApplicationTab:     s.str("GSHEET_TAB_APPLICATION", "Application Submissions"),
			PNMTab:             s.str("GSHEET_TAB_PNMS", "PNMs"),
			MetaTTL:            s.duration("GSHEET_META_TTL", 5*time.Minute),
		},

		SyncQueueSize: s.integer("SYNC_QUEUE_SIZE", 256),
		SyncWorkers:   s.integer("SYNC_WORKERS", 2),

		PublicLock:         strings.EqualFold(s.str("PUBLIC_LOCK", ""), "on"),
		PreviewKey:         s.str("PREVIEW_KEY", ""),
		CORSAllowedOrigins: splitList(s.str("CORS_ALLOWED_ORIGINS", "")),
	}
	if len(s.errs) > 0 {
		return nil, errors.Join(s.errs...)
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLen))
	}
	if c.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	switch c.StoreBackend {
	case BackendDynamo:
		if c.DynamoTable == "" {
			errs = append(errs, errors.New("DDB_TABLE is required for the dynamodb store"))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of %s, %s", c.StoreBackend, BackendDynamo, BackendSQLite))
	}
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("ENVIRONMENT %q is not one of %s, %s", c.Environment, EnvDevelopment, EnvProduction))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if c.PublicLock && c.PreviewKey == "" {
		errs = append(errs, errors.New("PREVIEW_KEY is required when PUBLIC_LOCK=on"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether cookies must be Secure and dev routes closed.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseDuration extends time.ParseDuration with a whole-day form ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// source resolves a key against the environment, then the file.
type source struct {
	file map[string]string
	errs []error
}

func (s *source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := s.file[key]
	return v, ok && v != ""
}

func (s *source) str(key, fallback string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return fallback
}

func (s *source) integer(key string, fallback int) int {
	v, ok := s.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (s *source) duration(key string, fallback time.Duration) time.Duration {
	v, ok := s.lookup(key)
	if !ok {
		return fallback
	}
	d, err := ParseDuration(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

// readFile loads a flat YAML mapping of setting name → scalar.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case []any:
			parts := make([]string, len(v))
			for i, p := range v {
				parts[i] = fmt.Sprint(p)
			}
			out[k] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("config: %s: %s must be a scalar or list", path, k)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
