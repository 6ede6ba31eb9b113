package models

import "time"

// ClientWindowState is the admission counter for one client identity.
// WindowStart is aligned to the window length; Count is the number of
// requests counted against the identity inside that window.
type ClientWindowState struct {
	Identity    string    `json:"identity"`
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
}

// AdmissionState is the per-identity limiter state
type AdmissionState string

const (
	AdmissionIdle     AdmissionState = "idle"
	AdmissionCounting AdmissionState = "counting"
	AdmissionBlocked  AdmissionState = "blocked"
)

// State reports where the identity sits in the Idle → Counting → Blocked cycle
// at time now, given a window length and ceiling.
func (s *ClientWindowState) State(now time.Time, window time.Duration, ceiling int) AdmissionState {
	if s == nil || s.Count == 0 || !now.Truncate(window).Equal(s.WindowStart) {
		return AdmissionIdle
	}
	if s.Count >= ceiling {
		return AdmissionBlocked
	}
	return AdmissionCounting
}
