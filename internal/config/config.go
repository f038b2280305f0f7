package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix           = "COFFEESHOP"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "coffeeshop.db"
	defaultDriver       = DriverSQLite
	defaultLogLevel     = "info"
	defaultLogFormat    = "json"
	defaultJWKSCacheTTL = 10 * time.Minute

	// DriverSQLite stores drinks in a local SQLite file.
	DriverSQLite = "sqlite"
	// DriverPostgres stores drinks in a Postgres database addressed by database.dsn.
	DriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string
	ResetDatabase  bool
	AuthDomain     string
	JWKSURL        string
	JWKSFile       string
	Issuer         string
	Audience       string
	JWKSCacheTTL   time.Duration
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("database.reset", false)
	configViper.SetDefault("auth.domain", "")
	configViper.SetDefault("auth.jwks_url", "")
	configViper.SetDefault("auth.jwks_file", "")
	configViper.SetDefault("auth.issuer", "")
	configViper.SetDefault("auth.audience", "")
	configViper.SetDefault("auth.jwks_cache_ttl", defaultJWKSCacheTTL)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabaseDriver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:   configViper.GetString("database.path"),
		DatabaseDSN:    configViper.GetString("database.dsn"),
		ResetDatabase:  configViper.GetBool("database.reset"),
		AuthDomain:     strings.TrimSpace(configViper.GetString("auth.domain")),
		JWKSURL:        strings.TrimSpace(configViper.GetString("auth.jwks_url")),
		JWKSFile:       strings.TrimSpace(configViper.GetString("auth.jwks_file")),
		Issuer:         strings.TrimSpace(configViper.GetString("auth.issuer")),
		Audience:       strings.TrimSpace(configViper.GetString("auth.audience")),
		JWKSCacheTTL:   configViper.GetDuration("auth.jwks_cache_ttl"),
		AllowedOrigins: splitList(configViper.GetStringSlice("cors.allowed_origins")),
		LogLevel:       configViper.GetString("log.level"),
		LogFormat:      configViper.GetString("log.format"),
	}
	cfg.applyDomain()

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadDatabase parses only the database keys, for commands that never serve HTTP.
func LoadDatabase(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabaseDriver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:   configViper.GetString("database.path"),
		DatabaseDSN:    configViper.GetString("database.dsn"),
		ResetDatabase:  configViper.GetBool("database.reset"),
		LogLevel:       configViper.GetString("log.level"),
		LogFormat:      configViper.GetString("log.format"),
	}
	if err := cfg.validateDatabase(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// applyDomain derives the Auth0-style JWKS URL and issuer from auth.domain
// when they were not configured explicitly.
func (c *AppConfig) applyDomain() {
	if c.AuthDomain == "" {
		return
	}
	base := strings.TrimSuffix(c.AuthDomain, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	if c.JWKSURL == "" && c.JWKSFile == "" {
		c.JWKSURL = base + "/.well-known/jwks.json"
	}
	if c.Issuer == "" {
		c.Issuer = base + "/"
	}
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if c.JWKSURL == "" && c.JWKSFile == "" {
		return fmt.Errorf("auth.jwks_url, auth.jwks_file or auth.domain is required")
	}
	if c.Issuer == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if c.Audience == "" {
		return fmt.Errorf("auth.audience is required")
	}
	return nil
}

func (c AppConfig) validateDatabase() error {
	switch c.DatabaseDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.DatabaseDriver)
	}
	return nil
}

// splitList flattens comma-separated entries, which is how list values arrive
// from environment variables.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
