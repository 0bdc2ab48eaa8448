package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/revocation"
)

type fakeSource struct {
	snapshot goToken.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goToken.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func latency(buckets ...uint64) map[goToken.MetricID]goToken.HistogramSnapshot {
	return map[goToken.MetricID]goToken.HistogramSnapshot{
		goToken.MetricValidateLatency: {Buckets: buckets, Sum: 250 * time.Millisecond},
	}
}

func TestRenderNothingWhenMetricsDisabled(t *testing.T) {
	exp := NewFromSource(fakeSource{})
	if got := exp.Render(); len(got) != 0 {
		t.Fatalf("expected no output, got:\n%s", got)
	}
}

func TestRenderHistogramLines(t *testing.T) {
	exp := NewFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters:   map[goToken.MetricID]uint64{goToken.MetricLoginSuccess: 7},
			Histograms: latency(1, 2, 3, 4, 5, 6, 7, 8),
		},
		dropped: 2,
	})

	out := string(exp.Render())
	for _, want := range []string{
		"gotoken_login_success_total 7\n",
		`gotoken_validate_latency_seconds_bucket{le="0.005"} 1` + "\n",
		`gotoken_validate_latency_seconds_bucket{le="0.1"} 15` + "\n",
		`gotoken_validate_latency_seconds_bucket{le="+Inf"} 36` + "\n",
		"gotoken_validate_latency_seconds_sum 0.25\n",
		"gotoken_validate_latency_seconds_count 36\n",
		"gotoken_audit_dropped_total 2\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderDroppedWithMetricsDisabled(t *testing.T) {
	out := string(NewFromSource(fakeSource{dropped: 3}).Render())
	if !strings.Contains(out, "gotoken_audit_dropped_total 3") {
		t.Fatalf("expected dropped counter, got:\n%s", out)
	}
	if !strings.Contains(out, "gotoken_logout_total 0") {
		t.Fatalf("expected zero counters alongside drops, got:\n%s", out)
	}
}

func TestRenderEscapesHelp(t *testing.T) {
	var buf strings.Builder
	helpEscaper.WriteString(&buf, "a\\b\nc")
	if got := buf.String(); got != `a\\b\nc` {
		t.Fatalf("unexpected escape %q", got)
	}
}

func TestHandlerContentType(t *testing.T) {
	exp := NewFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters: map[goToken.MetricID]uint64{goToken.MetricLoginSuccess: 1},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != ContentType {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestRenderFromEngine(t *testing.T) {
	cfg := goToken.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Purge.Interval = 0
	engine, err := goToken.New().
		WithConfig(cfg).
		WithRevocationStore(revocation.NewMemoryStore()).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	token, err := engine.Issue(ctx, "alice", []string{"USER"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if !engine.Introspect(ctx, token) {
		t.Fatal("expected active token")
	}
	if err := engine.Logout(ctx, token); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	out := string(New(engine).Render())
	for _, want := range []string{
		"gotoken_token_issued_total 1\n",
		"gotoken_introspect_active_total 1\n",
		"gotoken_logout_total 1\n",
		"gotoken_validate_latency_seconds_count 1\n",
		"# TYPE gotoken_validate_latency_seconds histogram\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters: map[goToken.MetricID]uint64{
				goToken.MetricLoginSuccess:     1000,
				goToken.MetricRefreshSuccess:   800,
				goToken.MetricIntrospectActive: 5000,
			},
			Histograms: latency(10, 20, 30, 40, 50, 60, 70, 80),
		},
	})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
