package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/danmuck/csta/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(framesReceived.WithLabelValues(ResultMalformed))
	RecordFrameReceived(ResultMalformed, 42)
	if got := testutil.ToFloat64(framesReceived.WithLabelValues(ResultMalformed)); got != before+1 {
		t.Fatalf("frames received got=%v want=%v", got, before+1)
	}

	fallbacks := testutil.ToFloat64(loginFallbacks)
	RecordLoginFallback()
	if got := testutil.ToFloat64(loginFallbacks); got != fallbacks+1 {
		t.Fatalf("fallbacks got=%v", got)
	}

	RecordConnectAttempt("plain", ResultOK)
	RecordFrameSent("keepalive", 40, true)
	RecordFrameSent("keepalive", 0, false)
	RecordKeepalive(true)
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	testlog.Start(t)
	RecordConnectAttempt("secure", ResultFailed)

	srv := httptest.NewServer(MetricsHandler(zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "csta_transport_connect_attempts_total") {
		t.Fatalf("metrics body missing connect counter")
	}

	missing, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d", missing.StatusCode)
	}
}
