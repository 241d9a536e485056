package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"fundarb/internal/application/port"
)

var _ port.Metrics = (*Metrics)(nil)

func TestRefreshDone(t *testing.T) {
	m := New()
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	m.RefreshDone("okx", nil)
	m.RefreshDone("okx", errors.New("timeout"))

	if got := testutil.ToFloat64(m.refreshTotal.WithLabelValues("okx")); got != 2 {
		t.Errorf("refresh total = %v", got)
	}
	if got := testutil.ToFloat64(m.refreshErrors.WithLabelValues("okx")); got != 1 {
		t.Errorf("refresh errors = %v", got)
	}
	if got := testutil.ToFloat64(m.lastRefresh.WithLabelValues("okx")); got != 1700000000 {
		t.Errorf("last refresh = %v", got)
	}
}

func TestHandlerExposesLegs(t *testing.T) {
	m := New()
	m.LegFinished("binance", "OPEN", "DONE")
	m.AlertRaised("PRICE_DEVIATION")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`fundarb_execution_legs_total{action="OPEN",state="DONE",venue="binance"} 1`,
		`fundarb_risk_alerts_total{kind="PRICE_DEVIATION"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
