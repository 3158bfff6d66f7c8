// Package producer polls the match service for one bot and feeds newly
// discovered turns into the shared queue.
package producer

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hivegame/botherd/internal/bot"
	"github.com/hivegame/botherd/internal/events"
	"github.com/hivegame/botherd/internal/log"
	"github.com/hivegame/botherd/internal/queue"
	"github.com/hivegame/botherd/internal/tracker"
)

// Producer discovers pending turns for a single bot. One producer goroutine
// runs per configured bot; all of them share the tracker and the queue.
type Producer struct {
	bot      *bot.Bot
	match    MatchService
	tracker  *tracker.Tracker
	queue    *queue.Queue
	events   *events.Hub
	interval time.Duration
	jitter   time.Duration
	logger   *slog.Logger
}

func New(b *bot.Bot, match MatchService, tr *tracker.Tracker, q *queue.Queue, hub *events.Hub, interval, jitter time.Duration) *Producer {
	return &Producer{
		bot:      b,
		match:    match,
		tracker:  tr,
		queue:    q,
		events:   hub,
		interval: interval,
		jitter:   jitter,
		logger:   log.WithComponent("producer").With("bot", b.Name),
	}
}

// Run polls until ctx is cancelled. A fetch failure is logged and treated as
// "no turns this cycle"; only a permanently closed queue ends the producer
// with an error.
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Info("producer started", "endpoint", p.bot.Endpoint, "interval", p.interval)
	defer p.logger.Info("producer stopped")

	for {
		if err := p.cycle(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(jitteredInterval(p.interval, p.jitter)):
		}
	}
}

// cycle runs one fetch/filter/enqueue pass. It returns a non-nil error only
// when the producer should terminate.
func (p *Producer) cycle(ctx context.Context) error {
	games, err := p.match.FetchPendingTurns(ctx, p.bot)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Warn("fetch failed, skipping cycle", "error", err)
		p.events.Publish(events.TypeProducerFailed, map[string]any{
			"bot":   p.bot.Name,
			"error": err.Error(),
		})
		return nil
	}

	p.logger.Debug("fetched pending turns", "count", len(games))
	p.events.Publish(events.TypeProducerFetched, map[string]any{
		"bot":   p.bot.Name,
		"count": len(games),
	})

	for _, game := range games {
		fp := bot.FingerprintOf(game)
		if !p.tracker.Begin(fp) {
			// Already in flight or recently completed.
			continue
		}

		turn := bot.NewTurn(p.bot, game)
		if err := p.queue.Push(ctx, turn); err != nil {
			// The turn never reached a worker, so release its fingerprint
			// before bailing out.
			p.tracker.MarkCompleted(fp)
			if errors.Is(err, queue.ErrClosed) {
				p.logger.Error("queue closed, terminating producer")
				return err
			}
			return nil // context cancelled while waiting for capacity
		}

		p.logger.Info("enqueued turn", "turn_id", turn.ID, "fingerprint", fp.Short())
		p.events.Publish(events.TypeTurnEnqueued, map[string]any{
			"bot":         p.bot.Name,
			"turn_id":     turn.ID,
			"fingerprint": fp.Short(),
		})
	}
	return nil
}

// jitteredInterval spreads bot polls out so a fleet of producers does not
// hit the match service in lockstep.
func jitteredInterval(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}
	return base + time.Duration(rand.Int63n(jitter.Nanoseconds()))
}
