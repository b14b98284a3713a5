package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OperationStarted("toggle")
		m.OperationFinished("toggle")
		m.OperationSettled("toggle", "committed")
		m.ObserveRemote("toggle", time.Second)
		m.Notification("delivered")
		m.CartMerge("merged")
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OperationSettled("toggle", "committed")
	m.OperationSettled("toggle", "committed")
	m.OperationSettled("add", "rolled_back")
	m.OperationStarted("delete")
	m.Notification("suppressed")
	m.CartMerge("merged")

	assert.Equal(t, 2.0, promtest.ToFloat64(m.operations.WithLabelValues("toggle", "committed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.operations.WithLabelValues("add", "rolled_back")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.inFlight.WithLabelValues("delete")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.notifications.WithLabelValues("suppressed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.cartMerges.WithLabelValues("merged")))

	m.OperationFinished("delete")
	assert.Equal(t, 0.0, promtest.ToFloat64(m.inFlight.WithLabelValues("delete")))
}

func TestHandler_ServesTextFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRemote("add", 20*time.Millisecond)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `repsync_remote_call_duration_seconds_count{kind="add"} 1`)
}
