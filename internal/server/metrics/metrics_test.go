package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveRequest(http.MethodPost, "/account/create", 200, 10*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", 404, time.Millisecond)
	m.AccountCreation("ok")
	m.AccountCreation("conflict")
	m.AccountCreation("ok")
	m.KeyEscrowed()
	m.FaucetRequest("rate_limited")

	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/account/create", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.accountsCreated.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.keysEscrowed))
	require.Equal(t, 1.0, testutil.ToFloat64(m.faucetTransfers.WithLabelValues("rate_limited")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SessionOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "novakeeper_funding_sessions_total 1"))
	require.Contains(t, body, "go_goroutines")
}
