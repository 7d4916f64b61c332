package worldboss

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Phase is the engine's view of the event lifecycle.
type Phase string

const (
	// PhaseUnknown is the state before the first status check resolves, and
	// again right after Resume.
	PhaseUnknown  Phase = "unknown"
	PhaseActive   Phase = "active"
	PhaseInactive Phase = "inactive"
	// PhaseStopped means polling gave up after too many inactive checks.
	PhaseStopped Phase = "stopped"
)

// Config holds the engine timing policy.
type Config struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	FastInterval time.Duration `yaml:"fast_interval"`
	SlowInterval time.Duration `yaml:"slow_interval"`
	MaxInactive  int           `yaml:"max_inactive"`
}

// DefaultConfig returns the production timing policy.
func DefaultConfig() Config {
	return Config{
		TickInterval: 100 * time.Millisecond,
		FastInterval: 15 * time.Second,
		SlowInterval: 60 * time.Second,
		MaxInactive:  3,
	}
}

// withDefaults fills zero or negative fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.FastInterval <= 0 {
		c.FastInterval = def.FastInterval
	}
	if c.SlowInterval <= 0 {
		c.SlowInterval = def.SlowInterval
	}
	if c.MaxInactive <= 0 {
		c.MaxInactive = def.MaxInactive
	}
	return c
}

// Snapshot is the read-only view handed to subscribers. It is rebuilt by the
// engine after every mutation and never modified afterwards.
type Snapshot struct {
	IsActive      bool         `json:"is_active"`
	RemainingMs   int64        `json:"remaining_ms"`
	FormattedTime string       `json:"formatted_time"`
	Window        *EventWindow `json:"window,omitempty"`
	Phase         Phase        `json:"phase"`
	CadenceMs     int64        `json:"cadence_ms"`
	InactiveCount int          `json:"inactive_count"`
	Subscribers   int          `json:"subscribers"`
	Polling       bool         `json:"polling"`
	Ticking       bool         `json:"ticking"`
	Now           time.Time    `json:"now"`
}

// visiblyDiffers reports whether a subscriber would render s differently
// from other.
func (s *Snapshot) visiblyDiffers(other *Snapshot) bool {
	if other == nil {
		return true
	}
	return s.IsActive != other.IsActive ||
		s.FormattedTime != other.FormattedTime ||
		s.Phase != other.Phase ||
		s.Subscribers != other.Subscribers
}

var idleSnapshot = &Snapshot{
	FormattedTime: FormatRemaining(0),
	Phase:         PhaseUnknown,
}

// engineState exists only while at least one subscriber is attached. Every
// field is owned by the engine goroutine.
type engineState struct {
	window        *EventWindow
	now           time.Time
	cadence       time.Duration
	inactiveCount int
	phase         Phase

	ticker clockwork.Ticker
	poller clockwork.Ticker

	// fetchCtx is canceled on teardown so abandoned requests stop early.
	fetchCtx      context.Context
	cancelFetches context.CancelFunc

	// Every fetch gets the next seq; a result older than the last applied
	// one is dropped.
	nextSeq    uint64
	appliedSeq uint64
}

func (st *engineState) snapshot(subscribers int) *Snapshot {
	remaining := remainingMs(st.window, st.now)
	snap := &Snapshot{
		IsActive:      st.window != nil && remaining > 0,
		RemainingMs:   remaining,
		FormattedTime: FormatRemaining(remaining),
		Phase:         st.phase,
		CadenceMs:     st.cadence.Milliseconds(),
		InactiveCount: st.inactiveCount,
		Subscribers:   subscribers,
		Polling:       st.poller != nil,
		Ticking:       st.ticker != nil,
		Now:           st.now,
	}
	if st.window != nil {
		w := *st.window
		snap.Window = &w
	}
	return snap
}
