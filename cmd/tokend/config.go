package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	goToken "github.com/MrEthical07/goToken"
)

// serverConfig is the on-disk YAML layout for tokend. Secrets are never
// read from the file; see applyEnv.
type serverConfig struct {
	Listen    string `yaml:"listen"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Backend selects the revocation store: memory, redis or postgres.
	Backend string `yaml:"backend"`
	// Users selects the user store: memory or postgres.
	Users       string `yaml:"users"`
	RedisAddr   string `yaml:"redis_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`

	Scopes []string `yaml:"scopes"`

	JWT struct {
		SigningMethod string        `yaml:"signing_method"`
		Lifetime      time.Duration `yaml:"lifetime"`
		Issuer        string        `yaml:"issuer"`
		Audience      string        `yaml:"audience"`
		KeyID         string        `yaml:"key_id"`
	} `yaml:"jwt"`

	Purge struct {
		Interval time.Duration `yaml:"interval"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"purge"`

	Security struct {
		ProductionMode   bool          `yaml:"production_mode"`
		LoginThrottle    bool          `yaml:"login_throttle"`
		MaxLoginAttempts int           `yaml:"max_login_attempts"`
		LoginCooldown    time.Duration `yaml:"login_cooldown"`
	} `yaml:"security"`

	Audit struct {
		Enabled    bool `yaml:"enabled"`
		BufferSize int  `yaml:"buffer_size"`
	} `yaml:"audit"`

	Metrics struct {
		Enabled           bool `yaml:"enabled"`
		LatencyHistograms bool `yaml:"latency_histograms"`
	} `yaml:"metrics"`

	Admin struct {
		Seed     bool   `yaml:"seed"`
		Username string `yaml:"username"`
	} `yaml:"admin"`

	secret        []byte
	adminPassword string
}

func defaultServerConfig() serverConfig {
	engine := goToken.DefaultConfig()

	var c serverConfig
	c.Listen = ":8080"
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.Backend = "memory"
	c.Users = "memory"
	c.Scopes = []string{"USER", "ADMIN"}
	c.JWT.SigningMethod = engine.JWT.SigningMethod
	c.JWT.Lifetime = engine.JWT.Lifetime
	c.Purge.Interval = engine.Purge.Interval
	c.Purge.Timeout = engine.Purge.Timeout
	c.Security.LoginThrottle = engine.Security.EnableLoginThrottle
	c.Security.MaxLoginAttempts = engine.Security.MaxLoginAttempts
	c.Security.LoginCooldown = engine.Security.LoginCooldownDuration
	c.Audit.BufferSize = engine.Audit.BufferSize
	c.Metrics.Enabled = true
	c.Admin.Username = "admin"
	return c
}

// loadServerConfig overlays the YAML file at path onto the defaults. An
// empty path returns the defaults.
func loadServerConfig(path string) (serverConfig, error) {
	c := defaultServerConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// applyEnv copies secrets from the environment.
func (c *serverConfig) applyEnv(getenv func(string) string) {
	if s := getenv("GOTOKEN_SECRET"); s != "" {
		c.secret = []byte(s)
	}
	if p := getenv("GOTOKEN_ADMIN_PASSWORD"); p != "" {
		c.adminPassword = p
	}
}

func (c serverConfig) validate() error {
	switch c.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.Users {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown user store %q", c.Users)
	}
	if c.Backend == "redis" && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("redis backend requires redis_addr")
	}
	if (c.Backend == "postgres" || c.Users == "postgres") && strings.TrimSpace(c.PostgresDSN) == "" {
		return errors.New("postgres requires postgres_dsn")
	}
	if len(c.secret) == 0 {
		return errors.New("GOTOKEN_SECRET is not set")
	}
	if c.Admin.Seed && c.adminPassword == "" {
		return errors.New("admin seeding requires GOTOKEN_ADMIN_PASSWORD")
	}
	return nil
}

// engineConfig maps the file layout onto goToken.Config.
func (c serverConfig) engineConfig() goToken.Config {
	cfg := goToken.DefaultConfig()
	cfg.JWT.SigningMethod = c.JWT.SigningMethod
	cfg.JWT.PrivateKey = c.secret
	cfg.JWT.Lifetime = c.JWT.Lifetime
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.Audience = c.JWT.Audience
	cfg.JWT.KeyID = c.JWT.KeyID
	cfg.Purge.Interval = c.Purge.Interval
	cfg.Purge.Timeout = c.Purge.Timeout
	cfg.Security.ProductionMode = c.Security.ProductionMode
	cfg.Security.EnableLoginThrottle = c.Security.LoginThrottle
	cfg.Security.MaxLoginAttempts = c.Security.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.Security.LoginCooldown
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms
	return cfg
}
