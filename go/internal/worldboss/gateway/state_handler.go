package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mcdev12/bosswatch/go/internal/worldboss"
	"github.com/rs/zerolog/log"
)

// StateHandler serves the countdown over plain HTTP.
type StateHandler struct {
	engine Countdown
	// settle bounds how long a state request waits for a first status check
	// when nobody else is attached.
	settle time.Duration
}

// NewStateHandler creates a new state handler
func NewStateHandler(engine Countdown) *StateHandler {
	return &StateHandler{
		engine: engine,
		settle: 3 * time.Second,
	}
}

// CurrentSnapshot returns the live snapshot when someone is attached.
// Otherwise it attaches briefly and waits for the first status check to
// resolve, so the answer never reflects an earlier session.
func (h *StateHandler) CurrentSnapshot(ctx context.Context) (worldboss.Snapshot, error) {
	if snap := h.engine.Snapshot(); snap.Subscribers > 0 {
		return snap, nil
	}

	sub, err := h.engine.Attach(ctx)
	if err != nil {
		return worldboss.Snapshot{}, err
	}
	defer sub.Detach()

	timer := time.NewTimer(h.settle)
	defer timer.Stop()

	var last worldboss.Snapshot
	for {
		select {
		case snap, ok := <-sub.C:
			if !ok {
				return worldboss.Snapshot{}, worldboss.ErrEngineStopped
			}
			last = snap
			if snap.Phase != worldboss.PhaseUnknown {
				return snap, nil
			}
		case <-timer.C:
			return last, nil
		case <-ctx.Done():
			return worldboss.Snapshot{}, ctx.Err()
		}
	}
}

// HandleGetState handles GET /api/worldboss/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.CurrentSnapshot(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to get countdown state")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleResume handles POST /api/worldboss/resume
func (h *StateHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.engine.Resume(r.Context()); err != nil {
		h.writeError(w, err, "failed to resume polling")
		return
	}
	writeJSON(w, http.StatusAccepted, h.engine.Snapshot())
}

// HandleRefresh handles POST /api/worldboss/refresh
func (h *StateHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.engine.RefreshNow(r.Context()); err != nil {
		h.writeError(w, err, "failed to refresh status")
		return
	}
	writeJSON(w, http.StatusAccepted, h.engine.Snapshot())
}

func (h *StateHandler) writeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, worldboss.ErrEngineStopped) {
		http.Error(w, "Countdown unavailable", http.StatusServiceUnavailable)
		return
	}
	log.Error().Err(err).Msg(msg)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// RegisterRoutes registers the REST routes with an HTTP mux
func (h *StateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/worldboss/state", h.HandleGetState)
	mux.HandleFunc("/api/worldboss/resume", h.HandleResume)
	mux.HandleFunc("/api/worldboss/refresh", h.HandleRefresh)
}
