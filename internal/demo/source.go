// Package demo produces synthetic fleet data for demonstration mode, used
// when no collection service is configured.
package demo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"audiofleet-dashboard/internal/model"
)

type deviceSeed struct {
	UserID     string
	DeviceName string
	// Cycle is the tick period after which the device flips between
	// listening and idle. Zero means permanently offline.
	Cycle    int
	Location model.Location
	HasAudio bool
}

var fleetSeeds = []deviceSeed{
	{UserID: "dev-001", DeviceName: "North Gate Recorder", Cycle: 3, Location: model.Location{Lat: 6.5244, Lng: 3.3792}, HasAudio: true},
	{UserID: "dev-002", DeviceName: "Market Square", Cycle: 5, Location: model.Location{Lat: 6.4541, Lng: 3.3947}, HasAudio: true},
	{UserID: "dev-003", DeviceName: "Riverside Unit", Cycle: 4, Location: model.Location{Lat: 6.6018, Lng: 3.3515}},
	{UserID: "dev-004", DeviceName: "", Cycle: 7, Location: model.Location{Lat: 6.5833, Lng: 3.75}, HasAudio: true},
	{UserID: "dev-005", DeviceName: "Warehouse Door", Cycle: 0, Location: model.Location{Lat: 6.4698, Lng: 3.5852}},
}

// Source implements the engine's transport surface with generated
// snapshots. Statuses rotate, uploads accrue, and one device stays
// offline so every dashboard state is demonstrable without an upstream.
type Source struct {
	startAt time.Time

	mu   sync.Mutex
	tick int
	// listening holds the demo's own notion of forced session state, so
	// start/stop commands are observable on the next poll.
	forced map[string]bool
}

func NewSource() *Source {
	return &Source{
		startAt: time.Now().UTC().Add(-26 * time.Hour),
		forced:  make(map[string]bool),
	}
}

func (s *Source) GetHealthCheck(_ context.Context) error {
	return nil
}

func (s *Source) GetDashboardData(_ context.Context) (model.DashboardSnapshot, error) {
	s.mu.Lock()
	tick := s.tick
	s.tick++
	forced := make(map[string]bool, len(s.forced))
	for id, on := range s.forced {
		forced[id] = on
	}
	s.mu.Unlock()

	now := time.Now().UTC()

	users := make([]model.Device, 0, len(fleetSeeds))
	listeningCount := 0
	for i, seed := range fleetSeeds {
		device := buildDevice(seed, tick, i, now, s.startAt)
		if on, ok := forced[seed.UserID]; ok && device.Status != model.DeviceOffline {
			if on {
				device.Status = model.DeviceListening
			} else {
				device.Status = model.DeviceIdle
			}
		}
		if device.Status == model.DeviceListening {
			listeningCount++
		}
		users = append(users, device)
	}

	return model.DashboardSnapshot{
		Users:               users,
		ActiveSessionsCount: listeningCount,
		TotalUsers:          len(users),
		LastUpdated:         now,
	}, nil
}

// StartListening records the intent so the next generated snapshot shows
// the device listening, mirroring how the real service acknowledges
// commands before the dashboard re-polls.
func (s *Source) StartListening(_ context.Context, userID string) error {
	return s.setForced(userID, true)
}

func (s *Source) StopListening(_ context.Context, userID string) error {
	return s.setForced(userID, false)
}

func (s *Source) setForced(userID string, listening bool) error {
	for _, seed := range fleetSeeds {
		if seed.UserID != userID {
			continue
		}
		s.mu.Lock()
		s.forced[userID] = listening
		s.mu.Unlock()
		return nil
	}
	return fmt.Errorf("unknown device %q", userID)
}

// demoOrigin stands in for the collection service origin, so demo
// playback URLs are absolute exactly like the production path.
const demoOrigin = "http://demo.fleet.local"

func (s *Source) ResolveResource(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return demoOrigin + path
}

func buildDevice(seed deviceSeed, tick, index int, now, startAt time.Time) model.Device {
	device := model.Device{
		UserID:     seed.UserID,
		DeviceName: seed.DeviceName,
		Status:     model.DeviceOffline,
		Location:   &model.Location{Lat: seed.Location.Lat, Lng: seed.Location.Lng},
		Uploads:    []model.Upload{},
	}

	if seed.Cycle == 0 {
		lastSeen := startAt
		device.LastSeen = &lastSeen
		return device
	}

	phase := (tick + index) / seed.Cycle
	if phase%2 == 0 {
		device.Status = model.DeviceListening
		sessionStart := now.Add(-time.Duration(30+10*index) * time.Second)
		device.SessionStart = &sessionStart
		device.CurrentSessionID = fmt.Sprintf("session-%s-%d", seed.UserID, phase)
	} else {
		device.Status = model.DeviceIdle
	}

	lastSeen := now.Add(-time.Duration(index) * time.Minute)
	device.LastSeen = &lastSeen

	uploadCount := 1 + (tick+index)/4
	if uploadCount > 5 {
		uploadCount = 5
	}
	for n := 0; n < uploadCount; n++ {
		filename := fmt.Sprintf("%s_%04d.wav", seed.UserID, uploadCount-n)
		device.Uploads = append(device.Uploads, model.Upload{
			Filename:     filename,
			MetadataFile: fmt.Sprintf("%s_%04d_meta.json", seed.UserID, uploadCount-n),
			Timestamp:    now.Add(-time.Duration(n+1) * 10 * time.Minute),
		})
	}
	if seed.HasAudio && len(device.Uploads) > 0 {
		device.LatestAudio = "/uploads/" + device.Uploads[0].Filename
	}

	return device
}
