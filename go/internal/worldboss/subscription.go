package worldboss

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Subscription is one attached consumer of the shared countdown.
type Subscription struct {
	// C receives a snapshot whenever the displayed state changes. Only the
	// latest snapshot is kept if the consumer falls behind. C is closed on
	// Detach.
	C <-chan Snapshot

	id     uint64
	engine *Engine
	c      chan Snapshot
	once   sync.Once
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Detach releases the subscription. The last detach stops the countdown and
// the poller. Calling Detach more than once is harmless.
func (s *Subscription) Detach() {
	s.once.Do(func() {
		err := s.engine.do(context.Background(), func() { s.engine.detach(s.id) })
		if err != nil {
			log.Debug().Err(err).Uint64("subscription_id", s.id).Msg("detach after engine stop")
		}
	})
}

// offer replaces any undelivered snapshot with snap. Only the engine
// goroutine sends on c.
func (s *Subscription) offer(snap Snapshot) {
	select {
	case s.c <- snap:
		return
	default:
	}
	select {
	case <-s.c:
	default:
	}
	select {
	case s.c <- snap:
	default:
	}
}
