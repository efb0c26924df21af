package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the display state of a market. It is always derived, never stored
// as the source of truth.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
	StatusResolved Status = "resolved"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusUpcoming, StatusActive, StatusEnded, StatusResolved}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
}

// Label returns the human-readable status name.
func (s Status) Label() string {
	switch s {
	case StatusUpcoming:
		return "Upcoming"
	case StatusActive:
		return "Active"
	case StatusEnded:
		return "Ended"
	case StatusResolved:
		return "Resolved"
	}
	return string(s)
}

// LifecycleInput carries the settlement-layer facts a status is derived from.
type LifecycleInput struct {
	CreationTime time.Time `json:"creation_time"`
	EndTime      time.Time `json:"end_time"`
	Resolved     bool      `json:"resolved"`
}
