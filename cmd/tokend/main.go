// Command tokend serves the goToken lifecycle over HTTP.
//
//	POST /auth/login       {"username","password"} -> {"token","valid"}
//	POST /auth/introspect  {"token"}               -> {"valid", ...claims}
//	POST /auth/refresh     {"token"}               -> {"token","valid"}
//	POST /auth/logout      {"token"}               -> 204
//	GET  /auth/me          Bearer token            -> claims
//	GET  /metrics          Prometheus text format
//
// Configuration comes from the YAML file named by --config or
// GOTOKEN_CONFIG, then command line flags. The signing secret is read from
// GOTOKEN_SECRET and the seeded administrator password from
// GOTOKEN_ADMIN_PASSWORD.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/metrics/export/prometheus"
	"github.com/MrEthical07/goToken/userstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stderr))
}

func run(ctx context.Context, args []string, getenv func(string) string, stderr io.Writer) int {
	c, err := parseArgs(args, getenv)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "tokend: %v\n", err)
		return 2
	}
	logger := newLogger(stderr, c.LogLevel, c.LogFormat)

	engineCfg := c.engineConfig()
	if err := engineCfg.Validate(); err != nil {
		logger.Error("invalid engine config", "error", err)
		return 2
	}
	findings := engineCfg.Lint()
	for _, w := range findings {
		logger.Warn("config lint", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}
	if engineCfg.Security.ProductionMode {
		if err := findings.AsError(goToken.LintHigh); err != nil {
			logger.Error("refusing to start", "error", err)
			return 2
		}
	}

	b, err := openBackends(ctx, c, engineCfg, logger)
	if err != nil {
		logger.Error("backend setup failed", "error", err)
		return 1
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("backend close failed", "error", err)
		}
	}()

	engine, err := buildEngine(c, engineCfg, b, logger)
	if err != nil {
		logger.Error("engine build failed", "error", err)
		return 1
	}
	defer engine.Close()

	if c.Admin.Seed {
		created, err := userstore.EnsureAdmin(ctx, b.users, c.Admin.Username, c.adminPassword)
		if err != nil {
			logger.Error("admin seed failed", "error", err)
			return 1
		}
		if created {
			logger.Info("seeded admin user", "username", c.Admin.Username)
		}
	}

	var metricsHandler http.Handler
	if c.Metrics.Enabled {
		metricsHandler = prometheus.New(engine).Handler()
	}
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              c.Listen,
		Handler:           newRouter(engine, logger, metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", c.Listen, "backend", c.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}
	logger.Info("stopped")
	return 0
}

func parseArgs(args []string, getenv func(string) string) (serverConfig, error) {
	flags := pflag.NewFlagSet("tokend", pflag.ContinueOnError)
	configPath := flags.String("config", getenv("GOTOKEN_CONFIG"), "path to YAML config file")
	listen := flags.String("listen", "", "listen address (overrides config)")
	backend := flags.String("backend", "", "revocation backend: memory, redis or postgres")
	users := flags.String("users", "", "user store: memory or postgres")
	redisAddr := flags.String("redis-addr", "", "redis address")
	postgresDSN := flags.String("postgres-dsn", "", "postgres connection string")
	seedAdmin := flags.Bool("seed-admin", false, "create the admin user when it does not exist")
	logLevel := flags.String("log-level", "", "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return serverConfig{}, err
	}

	c, err := loadServerConfig(*configPath)
	if err != nil {
		return c, err
	}
	overrides := []struct {
		dst *string
		val string
	}{
		{&c.Listen, *listen},
		{&c.Backend, *backend},
		{&c.Users, *users},
		{&c.RedisAddr, *redisAddr},
		{&c.PostgresDSN, *postgresDSN},
		{&c.LogLevel, *logLevel},
	}
	for _, o := range overrides {
		if o.val != "" {
			*o.dst = o.val
		}
	}
	if *seedAdmin {
		c.Admin.Seed = true
	}
	c.applyEnv(getenv)
	return c, c.validate()
}

func buildEngine(c serverConfig, cfg goToken.Config, b *backends, logger *slog.Logger) (*goToken.Engine, error) {
	builder := goToken.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithScopes(c.Scopes).
		WithUserProvider(b.users)
	if b.redis != nil {
		builder.WithRedis(b.redis)
	}
	if b.store != nil {
		builder.WithRevocationStore(b.store)
	}
	if cfg.Audit.Enabled {
		builder.WithAuditSink(goToken.NewSlogSink(logger))
	}
	return builder.Build()
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
