package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies an engine state transition.
type Kind string

const (
	KindWindowOpened   Kind = "WindowOpened"
	KindWindowUpdated  Kind = "WindowUpdated"
	KindWindowClosed   Kind = "WindowClosed"
	KindCadenceChanged Kind = "CadenceChanged"
	KindPollingStopped Kind = "PollingStopped"
	KindPollingResumed Kind = "PollingResumed"
	KindSessionExpired Kind = "SessionExpired"
)

// CloseReason says why an event window went away.
type CloseReason string

const (
	ReasonInactive    CloseReason = "inactive"
	ReasonExpired     CloseReason = "expired"
	ReasonMalformed   CloseReason = "malformed"
	ReasonFetchFailed CloseReason = "fetch_failed"
)

// Transition is emitted by the countdown engine every time its visible
// lifecycle changes. Window bounds are Unix seconds as sent by the server.
type Transition struct {
	ID            uuid.UUID   `json:"id"`
	Kind          Kind        `json:"kind"`
	StartTime     int64       `json:"start_time,omitempty"`
	EndTime       int64       `json:"end_time,omitempty"`
	Reason        CloseReason `json:"reason,omitempty"`
	CadenceMs     int64       `json:"cadence_ms,omitempty"`
	InactiveCount int         `json:"inactive_count"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// HasWindow reports whether the transition carries window bounds.
func (t Transition) HasWindow() bool {
	return t.EndTime != 0
}
