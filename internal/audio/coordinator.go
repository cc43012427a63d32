// Package audio manages the local playback session. At most one session is
// live at any time; selecting another device tears the old one down first.
package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"audiofleet-dashboard/internal/model"
)

// ErrNoAudioAvailable is returned when playback is requested for a device
// whose snapshot carries no playable recording. It is rejected before any
// network access.
var ErrNoAudioAvailable = errors.New("no audio available for device")

// ResourceResolver turns a device-relative resource path into an absolute
// URL on the same origin the dashboard data comes from.
type ResourceResolver interface {
	ResolveResource(path string) string
}

type Coordinator struct {
	resolver ResourceResolver
	log      zerolog.Logger

	mu      sync.Mutex
	session *model.AudioSession
}

func NewCoordinator(resolver ResourceResolver, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		resolver: resolver,
		log:      log.With().Str("component", "audio").Logger(),
	}
}

// RequestPlayback opens a session for the device's latest recording,
// replacing any existing session. The device must have existed in the
// snapshot at request time; later status changes do not invalidate
// playback.
func (c *Coordinator) RequestPlayback(device model.Device) (model.AudioSession, error) {
	if device.LatestAudio == "" {
		return model.AudioSession{}, ErrNoAudioAvailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.log.Debug().
			Str("user_id", c.session.UserID).
			Str("session_id", c.session.ID).
			Msg("tearing down playback session")
	}

	session := model.AudioSession{
		ID:          uuid.NewString(),
		UserID:      device.UserID,
		ResourceURL: c.resolver.ResolveResource(device.LatestAudio),
		Visible:     true,
		StartedAt:   time.Now().UTC(),
	}
	c.session = &session

	c.log.Info().
		Str("user_id", session.UserID).
		Str("session_id", session.ID).
		Str("resource_url", session.ResourceURL).
		Msg("playback session opened")

	return session, nil
}

// Close tears down the current session. No-op when none exists.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return
	}

	c.log.Info().
		Str("user_id", c.session.UserID).
		Str("session_id", c.session.ID).
		Msg("playback session closed")
	c.session = nil
}

// Current returns the live session, if any.
func (c *Coordinator) Current() (model.AudioSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return model.AudioSession{}, false
	}
	return *c.session, true
}
