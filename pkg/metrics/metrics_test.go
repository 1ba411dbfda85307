package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersDistinctMetricsPerInstance(t *testing.T) {
	reg1, _ := New()
	reg2, _ := New()

	reg1.MessagesSubmitted.WithLabelValues("chain-a", "chain-b", "RecvPacket").Inc()
	if got := testutil.ToFloat64(reg1.MessagesSubmitted.WithLabelValues("chain-a", "chain-b", "RecvPacket")); got != 1 {
		t.Errorf("reg1 counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg2.MessagesSubmitted.WithLabelValues("chain-a", "chain-b", "RecvPacket")); got != 0 {
		t.Errorf("reg2 counter = %v, want 0 (registries must not share state)", got)
	}
}

func TestLatestSourceHeightGauge(t *testing.T) {
	reg, _ := New()
	reg.LatestSourceHeight.WithLabelValues("chain-a").Set(12345)
	if got := testutil.ToFloat64(reg.LatestSourceHeight.WithLabelValues("chain-a")); got != 12345 {
		t.Errorf("gauge = %v, want 12345", got)
	}
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	reg, promReg := New()
	reg.ScanErrors.WithLabelValues("chain-a", "chain-b").Inc()

	srv := httptest.NewServer(Handler(promReg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 64*1024)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	if !strings.Contains(body, "lattice_relay_scan_errors_total") {
		t.Errorf("expected scan_errors_total metric in response body, got:\n%s", body)
	}
}
