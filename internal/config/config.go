// Package config loads the server configuration.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. A .env file, loaded into the process environment (optional)
//  3. A YAML file given with --config (optional)
//  4. Environment variables (PORT, STORAGE_DRIVER, JWT_SECRET, ...)
//
// Variables already set in the real environment win over the .env file,
// so a deployment never has a value silently replaced by a stale .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Password hashing modes.
const (
	HashingPlain  = "plain"
	HashingBcrypt = "bcrypt"
)

// Config is the full server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	HTTP    HTTPConfig    `yaml:"http"`
	GitHub  GitHubConfig  `yaml:"github"`
}

// StorageConfig selects and configures the key-value medium.
type StorageConfig struct {
	// Driver is sqlite, mysql or memory.
	Driver string `yaml:"driver"`

	// SQLitePath is the database file for the sqlite driver.
	// Default: data/ticketflow.db
	SQLitePath string `yaml:"sqlite_path"`

	// MySQLDSN is a go-sql-driver DSN, e.g. user:pass@tcp(db:3306)/ticketflow
	MySQLDSN string `yaml:"mysql_dsn"`
}

// AuthConfig configures sign-in.
type AuthConfig struct {
	// JWTSecret signs session tokens. At least 16 characters.
	JWTSecret string `yaml:"jwt_secret"`

	// SessionTTL is the lifetime of a session token and its cookie.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// PasswordHashing is plain (stored as typed) or bcrypt.
	PasswordHashing string `yaml:"password_hashing"`

	// SimulatedLatency delays sign-up and sign-in by a fixed amount.
	SimulatedLatency time.Duration `yaml:"simulated_latency"`

	// SecureCookies sets the Secure flag; enable behind HTTPS.
	SecureCookies bool `yaml:"secure_cookies"`
}

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	// CORSOrigins lists the origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors_origins"`

	// RateLimitPerMinute caps auth requests per client IP. 0 disables it.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

// GitHubConfig enables "Sign in with GitHub" when ClientID is set.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// Enabled reports whether GitHub sign-in is configured.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Port:     8080,
		LogLevel: "info",
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: "data/ticketflow.db",
		},
		Auth: AuthConfig{
			SessionTTL:      24 * time.Hour,
			PasswordHashing: HashingPlain,
		},
		HTTP: HTTPConfig{
			CORSOrigins:        []string{"http://localhost:5173"},
			RateLimitPerMinute: 20,
		},
	}
}

// Options says where Load looks for files. Empty fields skip that source.
type Options struct {
	// ConfigFile is a YAML file; it must exist when set.
	ConfigFile string
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
}

// Load builds the configuration from every source and validates it.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", opts.EnvFile, err)
		}
	}

	if opts.ConfigFile != "" {
		data, err := os.ReadFile(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", opts.ConfigFile, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", opts.ConfigFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides fields from environment variables. Every malformed
// value is reported, not only the first.
func (c *Config) applyEnv() error {
	var errs []error

	envInt("PORT", &c.Port, &errs)
	envString("LOG_LEVEL", &c.LogLevel)

	envString("STORAGE_DRIVER", &c.Storage.Driver)
	envString("DB_PATH", &c.Storage.SQLitePath)
	envString("MYSQL_DSN", &c.Storage.MySQLDSN)

	envString("JWT_SECRET", &c.Auth.JWTSecret)
	envDuration("SESSION_TTL", &c.Auth.SessionTTL, &errs)
	envString("PASSWORD_HASHING", &c.Auth.PasswordHashing)
	envDuration("SIMULATED_LATENCY", &c.Auth.SimulatedLatency, &errs)
	envBool("SECURE_COOKIES", &c.Auth.SecureCookies, &errs)

	if v, ok := os.LookupEnv("CORS_ORIGIN"); ok {
		c.HTTP.CORSOrigins = splitList(v)
	}
	envInt("RATE_LIMIT_PER_MINUTE", &c.HTTP.RateLimitPerMinute, &errs)

	envString("GITHUB_CLIENT_ID", &c.GitHub.ClientID)
	envString("GITHUB_CLIENT_SECRET", &c.GitHub.ClientSecret)
	envString("GITHUB_CALLBACK_URL", &c.GitHub.CallbackURL)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case DriverMySQL:
		if c.Storage.MySQLDSN == "" {
			errs = append(errs, errors.New("storage.mysql_dsn is required for the mysql driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q (want sqlite, mysql or memory)", c.Storage.Driver))
	}

	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	switch c.Auth.PasswordHashing {
	case HashingPlain, HashingBcrypt:
	default:
		errs = append(errs, fmt.Errorf("unknown password hashing %q (want plain or bcrypt)", c.Auth.PasswordHashing))
	}
	if c.Auth.SimulatedLatency < 0 {
		errs = append(errs, errors.New("auth.simulated_latency must not be negative"))
	}
	if c.HTTP.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("http.rate_limit_per_minute must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s=%q is not an integer", key, v))
		return
	}
	*dst = n
}

func envDuration(key string, dst *time.Duration, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s=%q is not a duration (e.g. 500ms, 24h)", key, v))
		return
	}
	*dst = d
}

func envBool(key string, dst *bool, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s=%q is not a boolean", key, v))
		return
	}
	*dst = b
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
