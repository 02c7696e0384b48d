// Package config carga la configuración de pbauth: YAML + defaults +
// overrides por variables de entorno (PBAUTH_*).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/pbauth/internal/cache"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/store"
)

type Config struct {
	App struct {
		Env string `yaml:"env"` // dev | prod | test
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		Driver       string `yaml:"driver"` // pocketbase | postgres | memory
		URL          string `yaml:"url"`
		DSN          string `yaml:"dsn"`
		Timeout      string `yaml:"timeout"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		Snapshot     string `yaml:"snapshot"` // memory: archivo JSON opcional
	} `yaml:"storage"`

	// Auth credenciales de admin del store. Si ambas están presentes el
	// adapter se autentica antes de tocar colecciones.
	Auth struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"auth"`

	Collections struct {
		Users              string `yaml:"users"`
		Accounts           string `yaml:"accounts"`
		Sessions           string `yaml:"sessions"`
		VerificationTokens string `yaml:"verification_tokens"`
	} `yaml:"collections"`

	Cache struct {
		Enabled bool   `yaml:"enabled"`
		Kind    string `yaml:"kind"` // memory | redis
		TTL     string `yaml:"ttl"`  // TTL de las entradas de usuario
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`

	Emulator struct {
		Addr          string `yaml:"addr"`
		AdminEmail    string `yaml:"admin_email"`
		AdminPassword string `yaml:"admin_password"`
		JWTSecret     string `yaml:"jwt_secret"`
		TokenTTL      string `yaml:"token_ttl"`
		Snapshot      string `yaml:"snapshot"`
	} `yaml:"emulator"`
}

// Load lee path (si no es vacío), aplica defaults y overrides de entorno, y
// valida. Con path vacío la configuración sale sólo de defaults + entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default retorna una configuración con todos los defaults aplicados.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "pocketbase"
	}
	if c.Storage.Timeout == "" {
		c.Storage.Timeout = "0s" // sin deadline
	}
	if c.Storage.Driver == "pocketbase" && c.Storage.URL == "" {
		c.Storage.URL = "http://127.0.0.1:8090"
	}
	if c.Collections.Users == "" {
		c.Collections.Users = "users"
	}
	if c.Collections.Accounts == "" {
		c.Collections.Accounts = "accounts"
	}
	if c.Collections.Sessions == "" {
		c.Collections.Sessions = "sessions"
	}
	if c.Collections.VerificationTokens == "" {
		c.Collections.VerificationTokens = "verification_tokens"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "1m"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "pbauth"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Emulator.Addr == "" {
		c.Emulator.Addr = ":8090"
	}
	if c.Emulator.TokenTTL == "" {
		c.Emulator.TokenTTL = "1h"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno PBAUTH_*.
func (c *Config) applyEnvOverrides() {
	// APP / LOG
	if v, ok := getEnvStr("PBAUTH_APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("PBAUTH_LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// STORAGE
	if v, ok := getEnvStr("PBAUTH_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("PBAUTH_STORAGE_URL"); ok {
		c.Storage.URL = v
	}
	if v, ok := getEnvStr("PBAUTH_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("PBAUTH_STORAGE_TIMEOUT"); ok {
		c.Storage.Timeout = v
	}
	if v, ok := getEnvInt("PBAUTH_STORAGE_MAX_OPEN_CONNS"); ok {
		c.Storage.MaxOpenConns = v
	}
	if v, ok := getEnvStr("PBAUTH_STORAGE_SNAPSHOT"); ok {
		c.Storage.Snapshot = v
	}

	// AUTH
	if v, ok := getEnvStr("PBAUTH_ADMIN_EMAIL"); ok {
		c.Auth.Email = v
	}
	if v, ok := getEnvStr("PBAUTH_ADMIN_PASSWORD"); ok {
		c.Auth.Password = v
	}

	// COLLECTIONS
	if v, ok := getEnvStr("PBAUTH_COLLECTION_USERS"); ok {
		c.Collections.Users = v
	}
	if v, ok := getEnvStr("PBAUTH_COLLECTION_ACCOUNTS"); ok {
		c.Collections.Accounts = v
	}
	if v, ok := getEnvStr("PBAUTH_COLLECTION_SESSIONS"); ok {
		c.Collections.Sessions = v
	}
	if v, ok := getEnvStr("PBAUTH_COLLECTION_VERIFICATION_TOKENS"); ok {
		c.Collections.VerificationTokens = v
	}

	// CACHE
	if v, ok := getEnvBool("PBAUTH_CACHE_ENABLED"); ok {
		c.Cache.Enabled = v
	}
	if v, ok := getEnvStr("PBAUTH_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("PBAUTH_CACHE_TTL"); ok {
		c.Cache.TTL = v
	}
	if v, ok := getEnvStr("PBAUTH_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("PBAUTH_REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("PBAUTH_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	// METRICS
	if v, ok := getEnvBool("PBAUTH_METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
	if v, ok := getEnvStr("PBAUTH_METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}

	// EMULATOR
	if v, ok := getEnvStr("PBAUTH_EMULATOR_ADDR"); ok {
		c.Emulator.Addr = v
	}
	if v, ok := getEnvStr("PBAUTH_EMULATOR_ADMIN_EMAIL"); ok {
		c.Emulator.AdminEmail = v
	}
	if v, ok := getEnvStr("PBAUTH_EMULATOR_ADMIN_PASSWORD"); ok {
		c.Emulator.AdminPassword = v
	}
	if v, ok := getEnvStr("PBAUTH_EMULATOR_JWT_SECRET"); ok {
		c.Emulator.JWTSecret = v
	}
}

// Validate verifica consistencia de la configuración.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "pocketbase":
		u, err := url.Parse(c.Storage.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: storage.url must be an absolute URL for the pocketbase driver, got %q", c.Storage.URL)
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("config: storage.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage.driver %q (pocketbase|postgres|memory)", c.Storage.Driver)
	}

	if (c.Auth.Email == "") != (c.Auth.Password == "") {
		return errors.New("config: auth.email and auth.password must be set together")
	}
	if !logger.ValidLevel(c.Log.Level) {
		return fmt.Errorf("config: invalid log.level %q", c.Log.Level)
	}
	if c.Cache.Kind != "memory" && c.Cache.Kind != "redis" {
		return fmt.Errorf("config: unknown cache.kind %q (memory|redis)", c.Cache.Kind)
	}

	for name, v := range map[string]string{
		"storage.timeout":          c.Storage.Timeout,
		"cache.ttl":                c.Cache.TTL,
		"cache.memory.default_ttl": c.Cache.Memory.DefaultTTL,
		"emulator.token_ttl":       c.Emulator.TokenTTL,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}

	for name, v := range map[string]string{
		"collections.users":               c.Collections.Users,
		"collections.accounts":            c.Collections.Accounts,
		"collections.sessions":            c.Collections.Sessions,
		"collections.verification_tokens": c.Collections.VerificationTokens,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("config: %s must not be empty", name)
		}
	}
	return nil
}

// duration parsea una duración ya validada.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// StorageConfig arma la configuración del driver del store.
func (c *Config) StorageConfig() store.AdapterConfig {
	return store.AdapterConfig{
		Name:         c.Storage.Driver,
		URL:          c.Storage.URL,
		DSN:          c.Storage.DSN,
		Timeout:      duration(c.Storage.Timeout),
		MaxOpenConns: c.Storage.MaxOpenConns,
		SnapshotPath: c.Storage.Snapshot,
	}
}

// CacheConfig arma la configuración del cache de lecturas.
func (c *Config) CacheConfig() cache.Config {
	cfg := cache.Config{
		Driver:     c.Cache.Kind,
		Password:   c.Cache.Redis.Password,
		DB:         c.Cache.Redis.DB,
		Prefix:     c.Cache.Redis.Prefix,
		DefaultTTL: duration(c.Cache.Memory.DefaultTTL),
	}
	if addr := c.Cache.Redis.Addr; addr != "" {
		host, port, found := strings.Cut(addr, ":")
		cfg.Host = host
		if found {
			cfg.Port, _ = strconv.Atoi(port)
		}
	}
	return cfg
}

// CacheTTL retorna el TTL de las entradas de usuario.
func (c *Config) CacheTTL() time.Duration { return duration(c.Cache.TTL) }

// EmulatorTokenTTL retorna la vida de los tokens de admin del emulador.
func (c *Config) EmulatorTokenTTL() time.Duration { return duration(c.Emulator.TokenTTL) }
