package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiofleet-dashboard/internal/model"
)

func TestSourceGeneratesCompleteFleet(t *testing.T) {
	source := NewSource()

	snapshot, err := source.GetDashboardData(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot.Users, len(fleetSeeds))
	assert.Equal(t, len(fleetSeeds), snapshot.TotalUsers)
	assert.False(t, snapshot.LastUpdated.IsZero())

	listening := 0
	for _, device := range snapshot.Users {
		assert.NotEmpty(t, device.UserID)
		assert.Contains(t, []model.DeviceState{model.DeviceListening, model.DeviceIdle, model.DeviceOffline}, device.Status)
		assert.NotNil(t, device.Location)
		if device.Status == model.DeviceListening {
			listening++
			assert.NotNil(t, device.SessionStart)
			assert.NotEmpty(t, device.CurrentSessionID)
		}
	}
	assert.Equal(t, listening, snapshot.ActiveSessionsCount)
}

func TestSourceKeepsSeededDeviceOffline(t *testing.T) {
	source := NewSource()

	for i := 0; i < 3; i++ {
		snapshot, err := source.GetDashboardData(context.Background())
		require.NoError(t, err)

		device, found := findUser(snapshot.Users, "dev-005")
		require.True(t, found)
		assert.Equal(t, model.DeviceOffline, device.Status)
		assert.Empty(t, device.LatestAudio)
	}
}

func TestSourceHonorsListeningCommands(t *testing.T) {
	source := NewSource()

	require.NoError(t, source.StartListening(context.Background(), "dev-002"))

	snapshot, err := source.GetDashboardData(context.Background())
	require.NoError(t, err)
	device, found := findUser(snapshot.Users, "dev-002")
	require.True(t, found)
	assert.Equal(t, model.DeviceListening, device.Status)

	require.NoError(t, source.StopListening(context.Background(), "dev-002"))

	snapshot, err = source.GetDashboardData(context.Background())
	require.NoError(t, err)
	device, found = findUser(snapshot.Users, "dev-002")
	require.True(t, found)
	assert.Equal(t, model.DeviceIdle, device.Status)
}

func TestSourceRejectsUnknownDeviceCommand(t *testing.T) {
	source := NewSource()

	err := source.StartListening(context.Background(), "dev-999")
	require.Error(t, err)
}

func TestSourceHealthAndResources(t *testing.T) {
	source := NewSource()

	require.NoError(t, source.GetHealthCheck(context.Background()))

	// Demo playback URLs are absolute, same as the production resolver.
	assert.Equal(t, "http://demo.fleet.local/uploads/a.wav", source.ResolveResource("/uploads/a.wav"))
	assert.Equal(t, "http://demo.fleet.local/uploads/a.wav", source.ResolveResource("uploads/a.wav"))
	assert.Equal(t, "http://cdn.example/a.wav", source.ResolveResource("http://cdn.example/a.wav"))
	assert.Empty(t, source.ResolveResource(""))
}

func findUser(users []model.Device, userID string) (model.Device, bool) {
	for _, device := range users {
		if device.UserID == userID {
			return device, true
		}
	}
	return model.Device{}, false
}
