package collection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiofleet-dashboard/internal/model"
)

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "admin", "supersecret", 2*time.Second, zerolog.Nop())
}

func TestGetDashboardDataSendsCredentialHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/dashboard-data", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)

		username, password, ok := r.BasicAuth()
		require.True(t, ok, "expected basic auth credentials")
		assert.Equal(t, "admin", username)
		assert.Equal(t, "supersecret", password)

		_, _ = w.Write([]byte(`{"users":[]}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).GetDashboardData(context.Background())
	require.NoError(t, err)
}

func TestGetDashboardDataNormalizesFullPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"active_sessions_count": 1,
			"total_users": 2,
			"connection_status": "connected",
			"last_updated": "2026-08-27T10:30:00",
			"users": [
				{
					"user_id": "dev1",
					"status": "listening",
					"device_name": "North Gate",
					"last_seen": "2026-08-27T10:29:30Z",
					"location": {"lat": 6.5244, "lng": 3.3792},
					"session_start": "2026-08-27T10:25:00Z",
					"current_session_id": "session-77",
					"latest_audio": "/uploads/dev1_0003.wav",
					"uploads": [
						{"filename": "dev1_0003.wav", "metadata_file": "dev1_0003_meta.json", "timestamp": "2026-08-27T10:20:00"},
						{"filename": "dev1_0002.wav", "metadata_file": "dev1_0002_meta.json", "timestamp": "2026-08-27T09:50:00"}
					]
				},
				{
					"user_id": "dev2",
					"status": "idle",
					"device_info": "Market Square",
					"last_activity": "2026-08-26T22:00:00Z"
				}
			]
		}`))
	}))
	defer ts.Close()

	snapshot, err := newTestClient(ts.URL).GetDashboardData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, snapshot.ActiveSessionsCount)
	assert.Equal(t, 2, snapshot.TotalUsers)
	assert.Equal(t, time.Date(2026, 8, 27, 10, 30, 0, 0, time.UTC), snapshot.LastUpdated)
	require.Len(t, snapshot.Users, 2)

	dev1 := snapshot.Users[0]
	assert.Equal(t, model.DeviceListening, dev1.Status)
	assert.Equal(t, "North Gate", dev1.DeviceName)
	assert.Equal(t, "/uploads/dev1_0003.wav", dev1.LatestAudio)
	assert.Equal(t, "session-77", dev1.CurrentSessionID)
	require.NotNil(t, dev1.Location)
	assert.Equal(t, 6.5244, dev1.Location.Lat)
	require.NotNil(t, dev1.SessionStart)
	require.Len(t, dev1.Uploads, 2)
	assert.Equal(t, "dev1_0003.wav", dev1.Uploads[0].Filename, "upload order must be preserved as received")

	// The legacy spelling (device_info/last_activity) maps onto the
	// canonical fields.
	dev2 := snapshot.Users[1]
	assert.Equal(t, "Market Square", dev2.DeviceName)
	require.NotNil(t, dev2.LastSeen)
	assert.Equal(t, time.Date(2026, 8, 26, 22, 0, 0, 0, time.UTC), *dev2.LastSeen)
	assert.Empty(t, dev2.LatestAudio)
	assert.Empty(t, dev2.Uploads)
}

func TestGetDashboardDataDefaultsAbsentFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[{"user_id":"dev9","status":"rebooting"}]}`))
	}))
	defer ts.Close()

	snapshot, err := newTestClient(ts.URL).GetDashboardData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, snapshot.ActiveSessionsCount, "absent count defaults to zero")
	assert.Equal(t, 0, snapshot.TotalUsers, "absent total is zero, never derived from the users array")
	assert.True(t, snapshot.LastUpdated.IsZero())

	require.Len(t, snapshot.Users, 1)
	device := snapshot.Users[0]
	assert.Equal(t, model.DeviceIdle, device.Status, "unrecognized status normalizes to idle")
	assert.Empty(t, device.DeviceName)
	assert.Nil(t, device.LastSeen)
	assert.Nil(t, device.Location)
	assert.NotNil(t, device.Uploads)
	assert.Empty(t, device.Uploads, "absent arrays normalize to empty")
}

func TestNon2xxSurfacesAsUniformFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).GetDashboardData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestGetHealthCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","timestamp":"2026-08-27T10:30:00","version":"1.0.0"}`))
	}))
	defer healthy.Close()

	require.NoError(t, newTestClient(healthy.URL).GetHealthCheck(context.Background()))

	degraded := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer degraded.Close()

	err := newTestClient(degraded.URL).GetHealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degraded")
}

func TestListeningCommandsPostToService(t *testing.T) {
	var gotPaths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotPaths = append(gotPaths, r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	require.NoError(t, client.StartListening(context.Background(), "dev1"))
	require.NoError(t, client.StopListening(context.Background(), "dev1"))

	assert.Equal(t, []string{"/api/start-listening/dev1", "/api/stop-listening/dev1"}, gotPaths)
}

func TestGetLatestAudio(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/latest-audio/dev1", r.URL.Path)
		_, _ = w.Write([]byte(`{"latest_audio":"/uploads/dev1_0003.wav"}`))
	}))
	defer ts.Close()

	locator, err := newTestClient(ts.URL).GetLatestAudio(context.Background(), "dev1")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/dev1_0003.wav", locator)
}

func TestResolveResource(t *testing.T) {
	client := newTestClient("http://collector.example:5000/")

	assert.Equal(t, "http://collector.example:5000", client.BaseURL())
	assert.Equal(t, "http://collector.example:5000/uploads/a.wav", client.ResolveResource("/uploads/a.wav"))
	assert.Equal(t, "http://collector.example:5000/uploads/a.wav", client.ResolveResource("uploads/a.wav"))
	assert.Equal(t, "https://cdn.example/a.wav", client.ResolveResource("https://cdn.example/a.wav"))
	assert.Empty(t, client.ResolveResource(""))
}
