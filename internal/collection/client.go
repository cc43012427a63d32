package collection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"audiofleet-dashboard/internal/model"
)

// Client talks to the collection service. It is the only place that knows
// the wire format: optional fields are normalized here, exactly once, so
// everything downstream can assume fully-populated values.
type Client struct {
	baseURL    string
	authHeader string
	http       *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL, username, password string, timeout time.Duration, log zerolog.Logger) *Client {
	credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + credentials,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "collection").Logger(),
	}
}

// BaseURL returns the resolved origin all requests are issued against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveResource turns a device-relative resource path (e.g. the
// latest_audio locator) into an absolute URL on the same origin the
// dashboard data comes from.
func (c *Client) ResolveResource(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) GetDashboardData(ctx context.Context) (model.DashboardSnapshot, error) {
	var out dashboardDataResponse
	if err := c.getJSON(ctx, "/api/dashboard-data", &out); err != nil {
		return model.DashboardSnapshot{}, err
	}
	return normalizeSnapshot(out), nil
}

func (c *Client) GetHealthCheck(ctx context.Context) error {
	var out healthResponse
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return err
	}
	if out.Status != "healthy" && out.Status != "ok" {
		return fmt.Errorf("service reports status %q", out.Status)
	}
	return nil
}

func (c *Client) StartListening(ctx context.Context, userID string) error {
	return c.postCommand(ctx, "/api/start-listening/"+url.PathEscape(userID))
}

func (c *Client) StopListening(ctx context.Context, userID string) error {
	return c.postCommand(ctx, "/api/stop-listening/"+url.PathEscape(userID))
}

// GetLatestAudio is a direct lookup for a device's newest recording. The
// locator embedded in the snapshot is authoritative when present; this is
// the fallback path.
func (c *Client) GetLatestAudio(ctx context.Context, userID string) (string, error) {
	var out latestAudioResponse
	if err := c.getJSON(ctx, "/api/latest-audio/"+url.PathEscape(userID), &out); err != nil {
		return "", err
	}
	return out.LatestAudio, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	return c.do(req, path, out)
}

func (c *Client) postCommand(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	return c.do(req, path, nil)
}

// do issues the request with the static credential header. Network errors
// and non-2xx statuses surface uniformly; the engine's retry policy does
// not distinguish them.
func (c *Client) do(req *http.Request, path string, out any) error {
	req.Header.Set("Authorization", c.authHeader)
	c.log.Trace().Str("method", req.Method).Str("path", path).Msg("issuing request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s failed with status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}

	return nil
}

func normalizeSnapshot(in dashboardDataResponse) model.DashboardSnapshot {
	users := make([]model.Device, 0, len(in.Users))
	for _, user := range in.Users {
		users = append(users, normalizeDevice(user))
	}

	// Counts are service-provided, never derived from the users array; an
	// absent count is zero.
	snapshot := model.DashboardSnapshot{
		Users: users,
	}
	if in.ActiveSessionsCount != nil {
		snapshot.ActiveSessionsCount = *in.ActiveSessionsCount
	}
	if in.TotalUsers != nil {
		snapshot.TotalUsers = *in.TotalUsers
	}
	if parsed := parseServiceTime(in.LastUpdated); parsed != nil {
		snapshot.LastUpdated = *parsed
	}

	return snapshot
}

// normalizeDevice maps both wire spellings the service has historically
// used (device_name/device_info, last_seen/last_activity) onto the one
// canonical schema, preferring the newer spelling.
func normalizeDevice(in wireUser) model.Device {
	device := model.Device{
		UserID:           in.UserID,
		Status:           normalizeDeviceState(in.Status),
		DeviceName:       strings.TrimSpace(in.DeviceName),
		LatestAudio:      in.LatestAudio,
		CurrentSessionID: in.CurrentSessionID,
		SessionStart:     parseServiceTime(in.SessionStart),
	}

	if device.DeviceName == "" {
		device.DeviceName = strings.TrimSpace(in.DeviceInfo)
	}

	device.LastSeen = parseServiceTime(in.LastSeen)
	if device.LastSeen == nil {
		device.LastSeen = parseServiceTime(in.LastActivity)
	}

	if in.Location != nil {
		device.Location = &model.Location{Lat: in.Location.Lat, Lng: in.Location.Lng}
	}

	device.Uploads = make([]model.Upload, 0, len(in.Uploads))
	for _, upload := range in.Uploads {
		entry := model.Upload{
			Filename:     upload.Filename,
			MetadataFile: upload.MetadataFile,
		}
		if parsed := parseServiceTime(upload.Timestamp); parsed != nil {
			entry.Timestamp = *parsed
		}
		device.Uploads = append(device.Uploads, entry)
	}

	return device
}

func normalizeDeviceState(value string) model.DeviceState {
	switch model.DeviceState(strings.ToLower(strings.TrimSpace(value))) {
	case model.DeviceListening:
		return model.DeviceListening
	case model.DeviceOffline:
		return model.DeviceOffline
	default:
		return model.DeviceIdle
	}
}

func parseServiceTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		parsed, err := time.Parse(format, value)
		if err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}

	return nil
}

type dashboardDataResponse struct {
	ActiveSessionsCount *int       `json:"active_sessions_count"`
	TotalUsers          *int       `json:"total_users"`
	ConnectionStatus    string     `json:"connection_status"`
	Users               []wireUser `json:"users"`
	LastUpdated         string     `json:"last_updated"`
}

type wireUser struct {
	UserID           string        `json:"user_id"`
	Status           string        `json:"status"`
	DeviceName       string        `json:"device_name"`
	DeviceInfo       string        `json:"device_info"`
	LastSeen         string        `json:"last_seen"`
	LastActivity     string        `json:"last_activity"`
	Location         *wireLocation `json:"location"`
	SessionStart     string        `json:"session_start"`
	CurrentSessionID string        `json:"current_session_id"`
	LatestAudio      string        `json:"latest_audio"`
	Uploads          []wireUpload  `json:"uploads"`
}

type wireLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type wireUpload struct {
	Filename     string `json:"filename"`
	MetadataFile string `json:"metadata_file"`
	Timestamp    string `json:"timestamp"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type latestAudioResponse struct {
	LatestAudio string `json:"latest_audio"`
}
