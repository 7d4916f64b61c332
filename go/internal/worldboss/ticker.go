package worldboss

import (
	"time"

	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
	"github.com/rs/zerolog/log"
)

func (e *Engine) startTicker() {
	e.st.ticker = e.clock.NewTicker(e.config.TickInterval)
}

func (e *Engine) stopTicker() {
	if e.st.ticker != nil {
		e.st.ticker.Stop()
		e.st.ticker = nil
	}
}

// tickC is nil, and so never ready, while no ticker runs.
func (e *Engine) tickC() <-chan time.Time {
	if e.st == nil || e.st.ticker == nil {
		return nil
	}
	return e.st.ticker.Chan()
}

// handleTick refreshes the clock reading and expires the window locally once
// its end has passed. The inactivity counter is left alone.
func (e *Engine) handleTick() {
	st := e.st
	if st == nil {
		return
	}
	st.now = e.clock.Now()

	if st.window != nil && st.window.Expired(st.now) {
		expired := *st.window
		st.window = nil
		if st.phase == PhaseActive {
			st.phase = PhaseInactive
		}

		log.Info().
			Int64("start_time", expired.Start).
			Int64("end_time", expired.End).
			Msg("event window expired locally")

		e.emit(events.Transition{
			Kind:      events.KindWindowClosed,
			StartTime: expired.Start,
			EndTime:   expired.End,
			Reason:    events.ReasonExpired,
		})
		e.setCadence(e.config.SlowInterval)
	}

	e.publish()
}
