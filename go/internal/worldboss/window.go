package worldboss

import "time"

// EventWindow is the server-declared active interval of the event, in Unix
// seconds. It is never mutated once received.
type EventWindow struct {
	Start int64 `json:"start_time"`
	End   int64 `json:"end_time"`
}

// EndMillis returns the end of the window in Unix milliseconds.
func (w EventWindow) EndMillis() int64 {
	return w.End * 1000
}

// Remaining returns how long is left at now, never negative.
func (w EventWindow) Remaining(now time.Time) time.Duration {
	remaining := w.EndMillis() - now.UnixMilli()
	if remaining < 0 {
		return 0
	}
	return time.Duration(remaining) * time.Millisecond
}

// Expired reports whether now is at or past the end of the window.
func (w EventWindow) Expired(now time.Time) bool {
	return w.Remaining(now) == 0
}

// remainingMs is the countdown value for an optional window.
func remainingMs(w *EventWindow, now time.Time) int64 {
	if w == nil {
		return 0
	}
	return w.Remaining(now).Milliseconds()
}
