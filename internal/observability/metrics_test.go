package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExecution(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "")

	m.RecordExecution("ok", "mintA", 10_000_000)
	m.RecordExecution("ok", "mintA", 5)
	m.RecordExecution("AccountMismatch", "mintA", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HookExecutions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HookExecutions.WithLabelValues("AccountMismatch")))
	assert.Equal(t, 10_000_005.0, testutil.ToFloat64(m.TokensBurned.WithLabelValues("mintA")))
}

func TestUpdateHighestSlot_Monotonic(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "test")

	m.UpdateHighestSlot(100)
	m.UpdateHighestSlot(50)
	assert.Equal(t, 100.0, testutil.ToFloat64(m.HighestSlotSeen))

	m.UpdateHighestSlot(101)
	assert.Equal(t, 101.0, testutil.ToFloat64(m.HighestSlotSeen))
}

func TestRecordDBQuery(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "")

	m.RecordDBQuery("postgres", "insert_registry", 0.01, nil)
	m.RecordDBQuery("postgres", "insert_registry", 0.02, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "insert_registry")))
}

func TestNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg, "")
	m.RecordWatcherError("parse")
	m.RecordRPCLatency("getAccountInfo", 0.2)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "burn_hook_watcher_errors_total")
	assert.Contains(t, names, "burn_hook_solana_rpc_call_latency_seconds")
}

func TestHandler(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
}
