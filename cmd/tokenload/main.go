// Command tokenload drives a goToken engine with concurrent introspection
// and refresh storms and reports latency percentiles.
//
// Every storm refreshes the same token from many goroutines at once;
// anything other than exactly one winner per token is reported as a
// rotation violation and makes the command exit non-zero.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/revocation"
)

type options struct {
	tokens      int
	concurrency int
	ops         int
	storms      int
	stormWidth  int
	backend     string
	redisAddr   string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("tokenload", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	var o options
	flags.IntVar(&o.tokens, "tokens", 10000, "number of tokens to issue")
	flags.IntVar(&o.concurrency, "concurrency", 128, "number of concurrent workers")
	flags.IntVar(&o.ops, "ops", 100000, "introspect operations")
	flags.IntVar(&o.storms, "storms", 200, "number of refresh storms")
	flags.IntVar(&o.stormWidth, "storm-width", 32, "concurrent refreshes per storm")
	flags.StringVar(&o.backend, "backend", "memory", "revocation backend: memory or redis")
	flags.StringVar(&o.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.tokens <= 0 || o.concurrency <= 0 || o.ops <= 0 || o.storms <= 0 || o.stormWidth <= 0 {
		fmt.Fprintln(stderr, "tokens, concurrency, ops, storms and storm-width must be > 0")
		return 2
	}
	if o.storms > o.tokens {
		o.storms = o.tokens
	}

	engine, cleanup, err := buildEngine(o, getenv, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "engine setup failed: %v\n", err)
		return 1
	}
	defer cleanup()

	fmt.Fprintf(stdout, "issuing %d tokens...\n", o.tokens)
	startIssue := time.Now()
	tokens := make([]string, o.tokens)
	for i := range tokens {
		tok, err := engine.Issue(ctx, fmt.Sprintf("user-%d", i), []string{"USER"})
		if err != nil {
			fmt.Fprintf(stderr, "issue failed: %v\n", err)
			return 1
		}
		tokens[i] = tok
	}
	fmt.Fprintf(stdout, "issued in %s\n", time.Since(startIssue).Round(time.Millisecond))

	introspectStats := runIntrospectPhase(ctx, engine, tokens, o.ops, o.concurrency)
	refreshStats, violations := runStormPhase(ctx, engine, tokens[:o.storms], o.stormWidth)

	fmt.Fprintln(stdout, "---- results ----")
	printStats(stdout, "introspect", introspectStats)
	printStats(stdout, "refresh", refreshStats)
	if violations > 0 {
		fmt.Fprintf(stderr, "rotation violations: %d storms did not produce exactly one winner\n", violations)
		return 1
	}
	fmt.Fprintf(stdout, "rotation: %d storms, one winner each\n", o.storms)
	return 0
}

func buildEngine(o options, getenv func(string) string, stdout io.Writer) (*goToken.Engine, func(), error) {
	cfg := goToken.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("tokenload-signing-key-0123456789")
	cfg.Purge.Interval = 0
	cfg.Security.EnableLoginThrottle = false

	b := goToken.New().WithConfig(cfg).WithMetricsEnabled(true)
	cleanup := func() {}

	switch o.backend {
	case "memory":
		b.WithRevocationStore(revocation.NewMemoryStore())
		fmt.Fprintln(stdout, "using in-memory revocation store")
	case "redis":
		addr := o.redisAddr
		if addr == "" {
			addr = getenv("REDIS_ADDR")
		}
		var client redis.UniversalClient
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("start miniredis: %w", err)
			}
			client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
			cleanup = func() {
				_ = client.Close()
				mr.Close()
			}
			fmt.Fprintf(stdout, "using miniredis at %s\n", mr.Addr())
		} else {
			client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
			cleanup = func() { _ = client.Close() }
			fmt.Fprintf(stdout, "using redis at %s\n", addr)
		}
		b.WithRedis(client)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", o.backend)
	}

	engine, err := b.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		cleanup()
	}, nil
}

func runIntrospectPhase(ctx context.Context, engine *goToken.Engine, tokens []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				tok := tokens[r.Intn(len(tokens))]
				t0 := time.Now()
				_, err := engine.IntrospectToken(ctx, tok)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runStormPhase refreshes each token width times concurrently and returns
// the number of storms without exactly one winner.
func runStormPhase(ctx context.Context, engine *goToken.Engine, tokens []string, width int) (phaseStats, int) {
	var (
		latencies  = make([]time.Duration, 0, len(tokens)*width)
		failures   int64
		violations int
		mu         sync.Mutex
	)

	start := time.Now()
	for _, tok := range tokens {
		var (
			wg      sync.WaitGroup
			winners int64
			gate    = make(chan struct{})
		)
		for i := 0; i < width; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				_, err := engine.Refresh(ctx, tok)
				d := time.Since(t0)
				switch {
				case err == nil:
					atomic.AddInt64(&winners, 1)
				case errors.Is(err, goToken.ErrTokenReuse):
				default:
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		close(gate)
		wg.Wait()
		if winners != 1 {
			violations++
		}
	}
	return computeStats(time.Since(start), latencies, failures), violations
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
