// Package view derives the filtered device list presented to the operator.
// Derivation is pure: it never mutates the snapshot and holds no state.
package view

import (
	"fmt"
	"strings"
	"time"

	"audiofleet-dashboard/internal/model"
)

// StatusFilter narrows the device list by session state.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterListening StatusFilter = "listening"
	FilterIdle      StatusFilter = "idle"
	FilterOffline   StatusFilter = "offline"
)

// ParseStatusFilter validates a filter value from the render layer. An
// empty value means "all".
func ParseStatusFilter(value string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(value))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterListening:
		return FilterListening, nil
	case FilterIdle:
		return FilterIdle, nil
	case FilterOffline:
		return FilterOffline, nil
	default:
		return "", fmt.Errorf("unknown status filter %q", value)
	}
}

// Filter returns the ordered sub-sequence of users matching both the
// search term and the status filter, preserving original relative order.
// A device matches the term if it is a case-insensitive substring of the
// user ID or of the device name; an absent name never matches a non-empty
// term.
func Filter(users []model.Device, search string, filter StatusFilter) []model.Device {
	term := strings.ToLower(strings.TrimSpace(search))

	matched := make([]model.Device, 0, len(users))
	for _, device := range users {
		if filter != FilterAll && device.Status != model.DeviceState(filter) {
			continue
		}
		if !matchesTerm(device, term) {
			continue
		}
		matched = append(matched, device)
	}

	return matched
}

func matchesTerm(device model.Device, term string) bool {
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(device.UserID), term) {
		return true
	}
	return device.DeviceName != "" && strings.Contains(strings.ToLower(device.DeviceName), term)
}

// FormatLastSeen renders a relative "last seen" label. now must be read
// once per render call so labels stay live across renders.
func FormatLastSeen(now time.Time, lastSeen *time.Time) string {
	if lastSeen == nil {
		return "Never"
	}

	elapsed := now.Sub(*lastSeen)
	switch {
	case elapsed < time.Minute:
		return "Just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(elapsed.Hours()/24))
	}
}
