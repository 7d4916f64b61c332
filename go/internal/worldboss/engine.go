package worldboss

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bosswatch/go/clients"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
	"github.com/rs/zerolog/log"
)

// ErrEngineStopped is returned by engine calls made after Run has returned.
var ErrEngineStopped = errors.New("countdown engine stopped")

// StatusFetcher performs one authenticated status request. An error means no
// usable response was produced.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (*clients.Response, error)
}

// Listener receives engine transitions. OnTransition is called from the
// engine goroutine and must not block.
type Listener interface {
	OnTransition(t events.Transition)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(t events.Transition)

func (f ListenerFunc) OnTransition(t events.Transition) { f(t) }

type Option func(*Engine)

// WithClock replaces the real clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithListener registers l for transitions.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, l) }
}

type fetchResult struct {
	session uint64
	seq     uint64
	resp    *clients.Response
	err     error
}

// Engine keeps one shared countdown for the world boss event and one poller
// for its status, however many subscribers are attached. All state is owned
// by the goroutine running Run; public methods send it commands.
type Engine struct {
	fetcher   StatusFetcher
	clock     clockwork.Clock
	config    Config
	listeners []Listener

	cmdCh    chan func()
	resultCh chan fetchResult
	done     chan struct{}
	current  atomic.Pointer[Snapshot]

	// Owned by the Run goroutine.
	runCtx    context.Context
	st        *engineState
	session   uint64
	subs      map[uint64]*Subscription
	nextSubID uint64
}

// New creates an engine. Run must be started before any other call returns.
func New(fetcher StatusFetcher, config Config, opts ...Option) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		clock:    clockwork.NewRealClock(),
		config:   config.withDefaults(),
		cmdCh:    make(chan func()),
		resultCh: make(chan fetchResult, 16),
		done:     make(chan struct{}),
		subs:     make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(idleSnapshot)
	return e
}

// Run serves the engine until ctx is canceled. It must be called once.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	defer close(e.done)
	defer e.shutdown()

	log.Info().
		Dur("tick", e.config.TickInterval).
		Dur("fast", e.config.FastInterval).
		Dur("slow", e.config.SlowInterval).
		Int("max_inactive", e.config.MaxInactive).
		Msg("countdown engine started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("countdown engine shutting down")
			return nil
		case cmd := <-e.cmdCh:
			e.drainFired()
			cmd()
		case <-e.tickC():
			e.handleTick()
		case <-e.pollC():
			e.fetch()
		case res := <-e.resultCh:
			e.applyResult(res)
		}
	}
}

// drainFired applies ticks, poller firings and fetch results that are already
// pending so a command observes everything that happened before it.
func (e *Engine) drainFired() {
	for {
		select {
		case <-e.tickC():
			e.handleTick()
		case <-e.pollC():
			e.fetch()
		case res := <-e.resultCh:
			e.applyResult(res)
		default:
			return
		}
	}
}

// do runs fn on the engine goroutine and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		fn()
		close(finished)
	}

	select {
	case e.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
	<-finished
	return nil
}

// Attach registers a subscriber. The first subscriber starts the ticker and
// the poller and triggers an immediate status check.
func (e *Engine) Attach(ctx context.Context) (*Subscription, error) {
	var sub *Subscription
	if err := e.do(ctx, func() { sub = e.attach() }); err != nil {
		return nil, err
	}
	return sub, nil
}

// Resume clears the inactivity counter, checks the status immediately and
// restarts polling if it had stopped. Without subscribers it does nothing.
func (e *Engine) Resume(ctx context.Context) error {
	return e.do(ctx, e.resume)
}

// RefreshNow performs one status check outside the polling schedule.
// Without subscribers it does nothing.
func (e *Engine) RefreshNow(ctx context.Context) error {
	return e.do(ctx, func() {
		if e.st == nil {
			log.Debug().Msg("refresh ignored, no subscribers")
			return
		}
		e.fetch()
	})
}

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() Snapshot {
	return *e.current.Load()
}

// ReportSessionExpired forwards a lost session to listeners.
func (e *Engine) ReportSessionExpired() {
	err := e.do(context.Background(), func() {
		e.emit(events.Transition{Kind: events.KindSessionExpired})
	})
	if err != nil {
		log.Debug().Err(err).Msg("session expiry not reported")
	}
}

func (e *Engine) attach() *Subscription {
	e.nextSubID++
	sub := &Subscription{
		id:     e.nextSubID,
		engine: e,
		c:      make(chan Snapshot, 1),
	}
	sub.C = sub.c
	e.subs[sub.id] = sub

	if len(e.subs) == 1 {
		e.bootstrap()
	}

	log.Debug().
		Uint64("subscription_id", sub.id).
		Int("subscribers", len(e.subs)).
		Msg("subscriber attached")

	e.publish()
	sub.offer(*e.current.Load())
	return sub
}

func (e *Engine) detach(id uint64) {
	sub, ok := e.subs[id]
	if !ok {
		return
	}
	delete(e.subs, id)
	close(sub.c)

	log.Debug().
		Uint64("subscription_id", id).
		Int("subscribers", len(e.subs)).
		Msg("subscriber detached")

	if len(e.subs) == 0 {
		e.teardown()
	}
	e.publish()
}

// bootstrap builds fresh state for the first subscriber. Nothing carries over
// from an earlier attachment.
func (e *Engine) bootstrap() {
	e.session++
	fetchCtx, cancel := context.WithCancel(e.runCtx)
	e.st = &engineState{
		now:           e.clock.Now(),
		cadence:       e.config.SlowInterval,
		phase:         PhaseUnknown,
		fetchCtx:      fetchCtx,
		cancelFetches: cancel,
	}

	log.Info().Uint64("session", e.session).Msg("countdown bootstrapped")

	e.fetch()
	e.startTicker()
	e.startPoller()
}

// teardown stops both schedules. In-flight fetches are canceled and their
// results fenced out by the session check.
func (e *Engine) teardown() {
	if e.st == nil {
		return
	}
	e.stopTicker()
	e.stopPoller()
	e.st.cancelFetches()
	e.st = nil

	log.Info().Uint64("session", e.session).Msg("countdown torn down")
}

func (e *Engine) shutdown() {
	for id, sub := range e.subs {
		delete(e.subs, id)
		close(sub.c)
	}
	e.teardown()
	e.current.Store(idleSnapshot)
}

func (e *Engine) resume() {
	st := e.st
	if st == nil {
		log.Debug().Msg("resume ignored, no subscribers")
		return
	}

	st.inactiveCount = 0
	st.phase = PhaseUnknown
	e.fetch()

	if st.poller == nil {
		e.startPoller()
		e.emit(events.Transition{Kind: events.KindPollingResumed, CadenceMs: st.cadence.Milliseconds()})
		log.Info().Dur("cadence", st.cadence).Msg("polling resumed")
	}
	e.publish()
}

// publish stores a new snapshot and pushes it to subscribers when what they
// would display has changed.
func (e *Engine) publish() {
	snap := idleSnapshot
	if e.st != nil {
		snap = e.st.snapshot(len(e.subs))
	}

	prev := e.current.Swap(snap)
	if !snap.visiblyDiffers(prev) {
		return
	}
	for _, sub := range e.subs {
		sub.offer(*snap)
	}
}

func (e *Engine) emit(t events.Transition) {
	t.ID = uuid.New()
	t.OccurredAt = e.clock.Now()
	if e.st != nil {
		t.InactiveCount = e.st.inactiveCount
	}
	for _, l := range e.listeners {
		l.OnTransition(t)
	}
}
