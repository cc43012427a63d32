// Package httpapi hosts the JSON surface the render layer reads. It only
// ever reads engine-owned state; mutations go through the dispatcher and
// the audio coordinator.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"audiofleet-dashboard/internal/audio"
	"audiofleet-dashboard/internal/model"
	"audiofleet-dashboard/internal/view"
)

type snapshotReader interface {
	Snapshot() (model.DashboardSnapshot, bool)
	State() model.PollState
	Ready() bool
}

type commandDispatcher interface {
	StartListening(ctx context.Context, userID string) error
	StopListening(ctx context.Context, userID string) error
}

type audioCoordinator interface {
	RequestPlayback(device model.Device) (model.AudioSession, error)
	Close()
	Current() (model.AudioSession, bool)
}

type Handler struct {
	reader       snapshotReader
	dispatcher   commandDispatcher
	audio        audioCoordinator
	pollInterval time.Duration
	log          zerolog.Logger
}

func NewHandler(reader snapshotReader, dispatcher commandDispatcher, coordinator audioCoordinator, pollInterval time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		reader:       reader,
		dispatcher:   dispatcher,
		audio:        coordinator,
		pollInterval: pollInterval,
		log:          log.With().Str("component", "httpapi").Logger(),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api/v1")
	{
		api.GET("/dashboard", h.GetDashboard)
		api.GET("/devices", h.ListDevices)

		deviceGroup := api.Group("/devices/:user_id")
		{
			deviceGroup.POST("/listening/start", h.StartListening)
			deviceGroup.POST("/listening/stop", h.StopListening)
		}

		api.GET("/playback", h.GetPlayback)
		api.POST("/playback/:user_id", h.StartPlayback)
		api.DELETE("/playback", h.ClosePlayback)
	}
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
}

func (h *Handler) GetDashboard(c *gin.Context) {
	state := h.reader.State()
	snapshot, ok := h.reader.Snapshot()

	c.Header("Cache-Control", "no-store")
	if !ok {
		// No successful poll yet; the connection indicator is still
		// meaningful to the render layer.
		c.JSON(http.StatusOK, dashboardResponse{
			Poll:           state,
			PollIntervalMS: h.pollInterval.Milliseconds(),
		})
		return
	}

	c.JSON(http.StatusOK, dashboardResponse{
		Poll:           state,
		Snapshot:       &snapshot,
		PollIntervalMS: h.pollInterval.Milliseconds(),
	})
}

func (h *Handler) ListDevices(c *gin.Context) {
	filter, err := view.ParseStatusFilter(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, ok := h.reader.Snapshot()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot unavailable"})
		return
	}

	matched := view.Filter(snapshot.Users, c.Query("search"), filter)

	now := time.Now().UTC()
	devices := make([]deviceView, 0, len(matched))
	for _, device := range matched {
		devices = append(devices, deviceView{
			Device:       device,
			LastSeenText: view.FormatLastSeen(now, device.LastSeen),
			HasAudio:     device.LatestAudio != "",
		})
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, deviceListResponse{
		Devices: devices,
		Total:   len(snapshot.Users),
	})
}

func (h *Handler) StartListening(c *gin.Context) {
	h.command(c, h.dispatcher.StartListening)
}

func (h *Handler) StopListening(c *gin.Context) {
	h.command(c, h.dispatcher.StopListening)
}

// command surfaces a failed dispatch as a transient notification payload.
// The snapshot is never mutated on failure; the operator may retry.
func (h *Handler) command(c *gin.Context, call func(context.Context, string) error) {
	userID := c.Param("user_id")
	if err := call(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "user_id": userID})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "user_id": userID})
}

func (h *Handler) StartPlayback(c *gin.Context) {
	userID := c.Param("user_id")

	snapshot, ok := h.reader.Snapshot()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot unavailable"})
		return
	}

	device, found := findDevice(snapshot.Users, userID)
	if !found {
		h.log.Debug().Str("user_id", userID).Msg("playback rejected, device not in snapshot")
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device", "user_id": userID})
		return
	}

	session, err := h.audio.RequestPlayback(device)
	if err != nil {
		if errors.Is(err, audio.ErrNoAudioAvailable) {
			h.log.Debug().Str("user_id", userID).Msg("playback rejected, no audio available")
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "user_id": userID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *Handler) GetPlayback(c *gin.Context) {
	session, ok := h.audio.Current()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no playback session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) ClosePlayback(c *gin.Context) {
	h.audio.Close()
	c.Status(http.StatusNoContent)
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Readyz(c *gin.Context) {
	if !h.reader.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

func findDevice(users []model.Device, userID string) (model.Device, bool) {
	for _, device := range users {
		if device.UserID == userID {
			return device, true
		}
	}
	return model.Device{}, false
}

type dashboardResponse struct {
	Poll           model.PollState          `json:"poll"`
	Snapshot       *model.DashboardSnapshot `json:"snapshot,omitempty"`
	PollIntervalMS int64                    `json:"poll_interval_ms"`
}

type deviceView struct {
	model.Device
	LastSeenText string `json:"last_seen_text"`
	HasAudio     bool   `json:"has_audio"`
}

type deviceListResponse struct {
	Devices []deviceView `json:"devices"`
	Total   int          `json:"total"`
}
