//go:build integration
// +build integration

package test

import (
	"os"
	"testing"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "integration-secret-0123456789abc"

func integrationConfig() goToken.Config {
	cfg := goToken.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.JWT.Lifetime = time.Minute
	cfg.Purge.Interval = 0
	cfg.Security.EnableLoginThrottle = false
	return cfg
}

// newMiniredis returns a client on a fresh miniredis instance.
func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

// newRealRedis connects to REDIS_ADDR or skips the test.
func newRealRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newRedisEngine(t *testing.T, rdb redis.UniversalClient, cfg goToken.Config) *goToken.Engine {
	t.Helper()

	engine, err := goToken.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
