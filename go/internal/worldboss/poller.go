package worldboss

import (
	"time"

	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
	"github.com/rs/zerolog/log"
)

func (e *Engine) startPoller() {
	e.st.poller = e.clock.NewTicker(e.st.cadence)
}

func (e *Engine) stopPoller() {
	if e.st.poller != nil {
		e.st.poller.Stop()
		e.st.poller = nil
	}
}

func (e *Engine) pollC() <-chan time.Time {
	if e.st == nil || e.st.poller == nil {
		return nil
	}
	return e.st.poller.Chan()
}

// fetch starts one status request in its own goroutine so a slow backend
// never holds up the ticker. The result comes back through resultCh.
func (e *Engine) fetch() {
	st := e.st
	st.nextSeq++
	seq := st.nextSeq
	session := e.session
	ctx := st.fetchCtx

	log.Debug().Uint64("session", session).Uint64("seq", seq).Msg("fetching event status")

	go func() {
		resp, err := e.fetcher.FetchStatus(ctx)
		select {
		case e.resultCh <- fetchResult{session: session, seq: seq, resp: resp, err: err}:
		case <-e.done:
		}
	}()
}

// applyResult runs the polling policy for one resolved fetch.
func (e *Engine) applyResult(res fetchResult) {
	st := e.st
	if st == nil || res.session != e.session {
		log.Debug().Uint64("session", res.session).Msg("discarding fetch result from closed session")
		return
	}
	if res.seq <= st.appliedSeq {
		log.Debug().
			Uint64("seq", res.seq).
			Uint64("applied_seq", st.appliedSeq).
			Msg("discarding out-of-order fetch result")
		return
	}
	st.appliedSeq = res.seq

	class := classifyFetch(res.resp, res.err)
	if class.Kind == ClassActive && !class.Window.Expired(st.now) {
		e.acceptWindow(class.Window)
	} else {
		e.recordInactive(class)
	}
	e.publish()
}

func (e *Engine) acceptWindow(w EventWindow) {
	st := e.st
	prev := st.window
	st.window = &w
	st.inactiveCount = 0
	st.phase = PhaseActive

	switch {
	case prev == nil:
		log.Info().Int64("start_time", w.Start).Int64("end_time", w.End).Msg("event window opened")
		e.emit(events.Transition{Kind: events.KindWindowOpened, StartTime: w.Start, EndTime: w.End})
	case *prev != w:
		log.Info().Int64("start_time", w.Start).Int64("end_time", w.End).Msg("event window updated")
		e.emit(events.Transition{Kind: events.KindWindowUpdated, StartTime: w.Start, EndTime: w.End})
	}

	e.setCadence(e.config.FastInterval)

	// A live window found by RefreshNow after polling stopped restarts it.
	if st.poller == nil {
		e.startPoller()
		log.Info().Dur("cadence", st.cadence).Msg("polling resumed by active status")
		e.emit(events.Transition{Kind: events.KindPollingResumed, CadenceMs: st.cadence.Milliseconds()})
	}
}

// recordInactive handles every non-active outcome: expired windows, inactive
// and malformed payloads, and failed fetches.
func (e *Engine) recordInactive(class Classification) {
	st := e.st

	if class.Kind == ClassFailed && st.window != nil {
		log.Warn().Err(class.Err).Msg("status check failed during active window")
	} else if class.Err != nil {
		log.Debug().Err(class.Err).Str("class", class.Kind.String()).Msg("status check not active")
	}

	if st.window != nil {
		closed := *st.window
		st.window = nil
		e.emit(events.Transition{
			Kind:      events.KindWindowClosed,
			StartTime: closed.Start,
			EndTime:   closed.End,
			Reason:    class.closeReason(),
		})
	}

	st.inactiveCount++
	if st.inactiveCount >= e.config.MaxInactive {
		st.phase = PhaseStopped
		if st.poller != nil {
			e.stopPoller()
			log.Info().Int("inactive_count", st.inactiveCount).Msg("polling stopped")
			e.emit(events.Transition{Kind: events.KindPollingStopped})
		}
		return
	}

	st.phase = PhaseInactive
	e.setCadence(e.config.SlowInterval)
}

// setCadence reschedules the poller only when the interval changes.
func (e *Engine) setCadence(d time.Duration) {
	st := e.st
	if st.cadence == d {
		return
	}
	st.cadence = d
	if st.poller != nil {
		st.poller.Reset(d)
	}

	log.Debug().Dur("cadence", d).Msg("poll cadence changed")
	e.emit(events.Transition{Kind: events.KindCadenceChanged, CadenceMs: d.Milliseconds()})
}
