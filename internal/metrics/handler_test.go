package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, h http.Handler) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return w.Code, string(body)
}

func TestHandler_ExposesRecordedValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordEventJoined()
	c.RecordJoinRejected("full")
	c.RecordAuthAttempt("google", "success")
	c.RecordEventsPurged(3)

	status, body := scrape(t, Handler(reg))
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}

	for _, want := range []string{
		"sporthub_events_joined_total 1",
		`sporthub_join_rejected_total{reason="full"} 1`,
		`sporthub_auth_attempts_total{provider="google",result="success"} 1`,
		"sporthub_events_purged_total 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}
}

func TestHandler_OnlyServesGivenRegistry(t *testing.T) {
	own := prometheus.NewRegistry()
	_ = NewCollector(own)

	other := prometheus.NewRegistry()
	other.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unrelated_total",
		Help: "別レジストリのカウンター",
	}))

	_, body := scrape(t, Handler(own))
	if strings.Contains(body, "unrelated_total") {
		t.Error("handler should not expose metrics from another registry")
	}
	if !strings.Contains(body, "sporthub_request_latency_seconds") {
		t.Error("handler should expose the collector's histogram")
	}
}
