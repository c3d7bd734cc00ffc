// internal/metrics/metrics_test.go
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/deye-bridge/internal/fault"
	"github.com/tamzrod/deye-bridge/internal/registers"
	"github.com/tamzrod/deye-bridge/internal/status"
)

type fakeSource struct {
	snap status.Snapshot
	regs registers.Map
}

func (f *fakeSource) Health(time.Time) status.Snapshot { return f.snap }
func (f *fakeSource) LastRegisters() registers.Map     { return f.regs }

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	at := time.Unix(1_700_000_000, 0)
	r.ObserveCycle(at, 2*time.Second, 12, nil)
	r.ObserveCycle(at, time.Second, 3, fmt.Errorf("x: %w", fault.ErrChecksum))
	r.ObserveChunkFailure(0x50, 0x5f, fault.ErrTransport)
	r.ObservePublishError()
	r.SetStatus(status.Snapshot{Health: status.HealthError, SecondsInError: 60})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles.WithLabelValues("checksum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chunkFailures.WithLabelValues("0x50-0x5f", "transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.publishErrors))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(r.lastSuccess))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.observations))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.health))
	assert.Equal(t, 60.0, testutil.ToFloat64(r.secondsInError))

	// double registration is reported, not panicked
	_, err = New(reg)
	assert.Error(t, err)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveCycle(time.Now(), time.Second, 1, nil)
	r.ObserveChunkFailure(1, 2, nil)
	r.ObservePublishError()
	r.SetStatus(status.Snapshot{})
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)
	r.ObserveCycle(time.Now(), time.Second, 1, nil)

	src := &fakeSource{
		snap: status.Snapshot{Health: status.HealthOK},
		regs: registers.Map{0x56: {0x03, 0xE8}},
	}
	srv := httptest.NewServer(Router(reg, src))
	defer srv.Close()

	get := func(path string) (*http.Response, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(b)
	}

	resp, body := get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "deye_poll_cycles_total")

	resp, body = get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"health":"ok"`)

	src.snap = status.Snapshot{Health: status.HealthError, LastErrorCode: 10}
	resp, _ = get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body = get("/registers/0x56")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rb registerBody
	require.NoError(t, json.Unmarshal([]byte(body), &rb))
	assert.Equal(t, registerBody{Address: 0x56, Int: 1000, Low: 0xE8, High: 0x03}, rb)

	resp, _ = get("/registers/86")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get("/registers/0x57")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get("/registers/nope")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
