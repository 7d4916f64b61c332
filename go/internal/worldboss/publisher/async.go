package publisher

import (
	"context"
	"time"

	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
	"github.com/rs/zerolog/log"
)

// Async hands transitions from the engine goroutine to an EventPublisher
// without blocking it. When the buffer is full new transitions are dropped.
type Async struct {
	name      string
	publisher EventPublisher
	queue     chan events.Transition
	timeout   time.Duration
}

func NewAsync(name string, publisher EventPublisher, buffer int) *Async {
	return &Async{
		name:      name,
		publisher: publisher,
		queue:     make(chan events.Transition, buffer),
		timeout:   5 * time.Second,
	}
}

// OnTransition queues t for publishing.
func (a *Async) OnTransition(t events.Transition) {
	select {
	case a.queue <- t:
	default:
		log.Warn().
			Str("sink", a.name).
			Str("kind", string(t.Kind)).
			Msg("transition queue full, dropping event")
	}
}

// Start publishes queued transitions until ctx is canceled, then flushes
// whatever is still queued.
func (a *Async) Start(ctx context.Context) {
	log.Info().Str("sink", a.name).Msg("transition publisher started")

	for {
		select {
		case <-ctx.Done():
			a.flush()
			log.Info().Str("sink", a.name).Msg("transition publisher stopped")
			return
		case t := <-a.queue:
			a.publish(ctx, t)
		}
	}
}

func (a *Async) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	for {
		select {
		case t := <-a.queue:
			a.publish(ctx, t)
		default:
			return
		}
	}
}

func (a *Async) publish(ctx context.Context, t events.Transition) {
	pubCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.publisher.Publish(pubCtx, t); err != nil {
		log.Error().
			Err(err).
			Str("sink", a.name).
			Str("event_id", t.ID.String()).
			Str("kind", string(t.Kind)).
			Msg("failed to publish transition")
	}
}
