package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordFetch("rss", "ok")
	r.RecordDelivery("rich")
	r.RecordRun("ok", time.Second)
	r.RecordChatTurn("ok")
	if r.Registry() != nil {
		t.Error("nil recorder should have nil registry")
	}
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.RecordFetch("crypto", "ok")
	r.RecordFetch("crypto", "ok")
	r.RecordFetch("crypto", "failed")
	r.RecordDelivery("plain")
	r.RecordRun("no_data", 2*time.Second)
	r.RecordChatTurn("failed")

	if got := testutil.ToFloat64(r.fetchTotal.WithLabelValues("crypto", "ok")); got != 2 {
		t.Errorf("fetch ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.fetchTotal.WithLabelValues("crypto", "failed")); got != 1 {
		t.Errorf("fetch failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.deliveryTotal.WithLabelValues("plain")); got != 1 {
		t.Errorf("delivery plain = %v", got)
	}
	if got := testutil.ToFloat64(r.runsTotal.WithLabelValues("no_data")); got != 1 {
		t.Errorf("runs no_data = %v", got)
	}
	if got := testutil.ToFloat64(r.chatTurnsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("chat failed = %v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := New()
	r.RecordFetch("weather", "empty")

	srv := httptest.NewServer(promhttp.HandlerFor(r.Registry(), promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `briefclaw_fetch_total{source="weather",status="empty"} 1`) {
		t.Errorf("metrics output missing fetch counter:\n%s", body)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		health     HealthFunc
		wantStatus int
		wantOK     bool
	}{
		{"no health func", nil, http.StatusOK, true},
		{"healthy", func() (bool, any) { return true, map[string]bool{"telegram": true} }, http.StatusOK, true},
		{"unhealthy", func() (bool, any) { return false, "disconnected" }, http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthHandler(tt.health)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body struct {
				OK bool `json:"ok"`
			}
			json.NewDecoder(rec.Body).Decode(&body)
			if body.OK != tt.wantOK {
				t.Errorf("ok = %v, want %v", body.OK, tt.wantOK)
			}
		})
	}
}
