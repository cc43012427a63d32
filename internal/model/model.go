package model

import "time"

// ConnectionStatus describes the dashboard's link to the collection service.
type ConnectionStatus string

const (
	ConnectionConnecting ConnectionStatus = "connecting"
	ConnectionConnected  ConnectionStatus = "connected"
	ConnectionError      ConnectionStatus = "error"
)

// DeviceState is the server-side session state of a reporting device.
type DeviceState string

const (
	DeviceListening DeviceState = "listening"
	DeviceIdle      DeviceState = "idle"
	DeviceOffline   DeviceState = "offline"
)

// DashboardSnapshot is one complete view of fleet state as of a single
// successful poll. It is replaced wholesale; consumers never mutate it.
type DashboardSnapshot struct {
	ConnectionStatus    ConnectionStatus `json:"connection_status"`
	Users               []Device         `json:"users"`
	ActiveSessionsCount int              `json:"active_sessions_count"`
	TotalUsers          int              `json:"total_users"`
	LastUpdated         time.Time        `json:"last_updated"`
	ReceivedAt          time.Time        `json:"received_at"`
}

// Device is one reporting endpoint tracked by the collection service.
type Device struct {
	UserID           string      `json:"user_id"`
	Status           DeviceState `json:"status"`
	DeviceName       string      `json:"device_name,omitempty"`
	LastSeen         *time.Time  `json:"last_seen,omitempty"`
	Location         *Location   `json:"location,omitempty"`
	Uploads          []Upload    `json:"uploads"`
	LatestAudio      string      `json:"latest_audio,omitempty"`
	SessionStart     *time.Time  `json:"session_start,omitempty"`
	CurrentSessionID string      `json:"current_session_id,omitempty"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Upload is immutable once present in a snapshot.
type Upload struct {
	Filename     string    `json:"filename"`
	MetadataFile string    `json:"metadata_file,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// PollState is the engine-owned view of the polling loop.
type PollState struct {
	IsActive         bool             `json:"is_active"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	RetryCount       int              `json:"retry_count"`
	LastError        string           `json:"last_error,omitempty"`
	LastUpdated      time.Time        `json:"last_updated"`
}

// AudioSession is the local playback context bound to one device's latest
// recording. At most one exists at a time.
type AudioSession struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ResourceURL string    `json:"resource_url"`
	Visible     bool      `json:"visible"`
	StartedAt   time.Time `json:"started_at"`
}
