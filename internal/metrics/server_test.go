package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStatus []CameraStatus

func (s staticStatus) Status() []CameraStatus { return s }

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		cameras  staticStatus
		wantCode int
		want     string
	}{
		{"no cameras", nil, http.StatusOK, "healthy"},
		{"running", staticStatus{{SessionPath: "/camera/a", State: "running"}}, http.StatusOK, "healthy"},
		{"one failed", staticStatus{
			{SessionPath: "/camera/a", State: "running"},
			{SessionPath: "/camera/b", State: "failed", Error: "connection refused"},
		}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(":0", New(), tc.cameras)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.wantCode, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.want, resp.Status)
			assert.Len(t, resp.Cameras, len(tc.cameras))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := New()
	m.FramesWritten.WithLabelValues("/camera/10.0.0.5").Add(3)
	m.SetState("/camera/10.0.0.5", []string{"idle", "running"}, "running")

	srv := NewServer("127.0.0.1:0", m, nil)
	require.NoError(t, srv.Start())
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `camera_rgb_slot_frames_written_total{session_path="/camera/10.0.0.5"} 3`)
	assert.Contains(t, string(body), `camera_rgb_pipeline_state{session_path="/camera/10.0.0.5",state="running"} 1`)

	t.Logf("✅ metrics served at %s", srv.Addr())
}

func TestServer_DoubleStart(t *testing.T) {
	srv := NewServer("127.0.0.1:0", New(), nil)
	require.NoError(t, srv.Start())
	defer srv.Shutdown(context.Background())

	assert.Error(t, srv.Start())
}
