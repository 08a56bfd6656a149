// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package config builds the application configuration from CLI flags,
// environment variables and an optional TOML file.
package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Auth     AuthConfig
	CSRF     CSRFConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical
	TokenSecret string        // HMAC secret for identity tokens
	TokenTTL    time.Duration // identity token lifetime
	CacheTTL    time.Duration // identity cache TTL
	Issuer      string        // token issuer claim
}

type CSRFConfig struct { //nolint:govet // fieldalignment not critical
	Secret        string        // master secret for per-user token derivation
	TokenTTL      time.Duration // csrf token lifetime
	SweepInterval time.Duration // expired-row sweep cadence
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Auth: AuthConfig{
			TokenSecret: cmd.String("auth-token-secret"),
			TokenTTL:    cmd.Duration("auth-token-ttl"),
			CacheTTL:    cmd.Duration("auth-cache-ttl"),
			Issuer:      cmd.String("auth-issuer"),
		},
		CSRF: CSRFConfig{
			Secret:        cmd.String("csrf-secret"),
			TokenTTL:      cmd.Duration("csrf-token-ttl"),
			SweepInterval: cmd.Duration("csrf-sweep-interval"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// Secure reports whether the server is reached over https, which decides
// the Secure flag on auth and CSRF cookies.
func (c *Config) Secure() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	if port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   5,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/assesshub.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "auth-token-secret",
			Usage:   "HMAC secret for identity tokens (generated when empty; dev only)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_TOKEN_SECRET"), toml.TOML("auth.token_secret", configFile)),
		},
		&cli.DurationFlag{
			Name:    "auth-token-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Identity token lifetime",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_TOKEN_TTL"), toml.TOML("auth.token_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "auth-cache-ttl",
			Value:   60 * time.Second,
			Usage:   "Identity cache TTL",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_CACHE_TTL"), toml.TOML("auth.cache_ttl", configFile)),
		},
		&cli.StringFlag{
			Name:    "auth-issuer",
			Value:   "assesshub",
			Usage:   "Issuer claim for identity tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_ISSUER"), toml.TOML("auth.issuer", configFile)),
		},
		&cli.StringFlag{
			Name:    "csrf-secret",
			Usage:   "Master secret for CSRF token derivation (generated when empty; dev only)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CSRF_SECRET"), toml.TOML("csrf.secret", configFile)),
		},
		&cli.DurationFlag{
			Name:    "csrf-token-ttl",
			Value:   24 * time.Hour,
			Usage:   "CSRF token lifetime",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CSRF_TOKEN_TTL"), toml.TOML("csrf.token_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "csrf-sweep-interval",
			Value:   time.Hour,
			Usage:   "Cadence of the expired CSRF token sweep",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CSRF_SWEEP_INTERVAL"), toml.TOML("csrf.sweep_interval", configFile)),
		},
	}
}
