package worldboss

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/bosswatch/go/clients"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
)

// ClassKind is the outcome of one status check.
type ClassKind int

const (
	ClassActive ClassKind = iota
	ClassInactive
	ClassMalformed
	ClassFailed
)

func (k ClassKind) String() string {
	switch k {
	case ClassActive:
		return "active"
	case ClassInactive:
		return "inactive"
	case ClassMalformed:
		return "malformed"
	case ClassFailed:
		return "failed"
	default:
		return fmt.Sprintf("ClassKind(%d)", int(k))
	}
}

// Classification is a status response mapped onto the engine's vocabulary.
// Window is set only for ClassActive.
type Classification struct {
	Kind   ClassKind
	Window EventWindow
	Err    error
}

// closeReason maps a non-active classification to the reason reported when
// it closes a window.
func (c Classification) closeReason() events.CloseReason {
	switch c.Kind {
	case ClassMalformed:
		return events.ReasonMalformed
	case ClassFailed:
		return events.ReasonFetchFailed
	case ClassActive:
		return events.ReasonExpired
	default:
		return events.ReasonInactive
	}
}

const (
	statusActive   = "active"
	statusInactive = "inactive"
)

// Messages the backend uses instead of a status field when nothing is running.
var inactiveMessages = map[string]bool{
	"No wb active":    true,
	"No active event": true,
}

type statusPayload struct {
	Status    *string  `json:"status"`
	Message   string   `json:"message"`
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
}

// Classify maps a raw status response. Non-2xx statuses, undecodable bodies
// and payloads of neither known shape are ClassMalformed.
func Classify(statusCode int, body []byte) Classification {
	if statusCode < 200 || statusCode >= 300 {
		return Classification{Kind: ClassMalformed, Err: fmt.Errorf("unexpected status code %d", statusCode)}
	}

	var payload statusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Classification{Kind: ClassMalformed, Err: fmt.Errorf("decode status payload: %w", err)}
	}

	if payload.Status != nil {
		switch *payload.Status {
		case statusActive:
			if payload.StartTime == nil || payload.EndTime == nil {
				return Classification{Kind: ClassMalformed, Err: errors.New("active payload missing start_time or end_time")}
			}
			window := EventWindow{Start: int64(*payload.StartTime), End: int64(*payload.EndTime)}
			if window.Start <= 0 || window.End <= 0 || window.End < window.Start {
				return Classification{Kind: ClassMalformed, Err: fmt.Errorf("invalid window %d-%d", window.Start, window.End)}
			}
			return Classification{Kind: ClassActive, Window: window}
		case statusInactive:
			return Classification{Kind: ClassInactive}
		default:
			return Classification{Kind: ClassMalformed, Err: fmt.Errorf("unknown status %q", *payload.Status)}
		}
	}

	if inactiveMessages[payload.Message] {
		return Classification{Kind: ClassInactive}
	}
	return Classification{Kind: ClassMalformed, Err: errors.New("unrecognized status payload")}
}

// classifyFetch folds a fetch outcome into a classification. A missing
// response is a failure, never an error for the caller.
func classifyFetch(resp *clients.Response, err error) Classification {
	if err != nil {
		return Classification{Kind: ClassFailed, Err: err}
	}
	if resp == nil {
		return Classification{Kind: ClassFailed, Err: errors.New("no response")}
	}
	return Classify(resp.StatusCode, resp.Body)
}
