// Package dispatch pulls turns off the shared queue and runs one engine
// worker per turn, bounded globally by a weighted semaphore.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hivegame/botherd/internal/bot"
	"github.com/hivegame/botherd/internal/events"
	"github.com/hivegame/botherd/internal/journal"
	"github.com/hivegame/botherd/internal/log"
	"github.com/hivegame/botherd/internal/queue"
	"github.com/hivegame/botherd/internal/tracker"
)

// MoveEngine computes a best move for a turn. The production implementation
// is the engine driver.
type MoveEngine interface {
	BestMove(ctx context.Context, b *bot.Bot, gameString string) (move, stderr string, err error)
}

// MoveSubmitter hands a computed move back to the match service. Optional:
// a nil submitter leaves the pipeline in compute-only mode.
type MoveSubmitter interface {
	SubmitMove(ctx context.Context, b *bot.Bot, gameString, move string) error
}

// TurnRecorder journals finished invocations. Optional.
type TurnRecorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Stats is a point-in-time snapshot for the status API. Counters are atomics
// so the API can read them without touching dispatcher-owned state.
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Reaped     int64 `json:"reaped"`
	Active     int64 `json:"active"`
}

// invocation is one spawned engine worker, held until reaped.
type invocation struct {
	id        int64
	turn      *bot.Turn
	startedAt time.Time
}

// Dispatcher is the single consumer of the shared queue. It spawns engine
// workers without waiting for them and opportunistically reaps finished ones.
// The concurrency bound lives in the workers' entry gate (the semaphore), not
// here, so it applies globally across bots.
type Dispatcher struct {
	queue   *queue.Queue
	tracker *tracker.Tracker
	engine  MoveEngine
	submit  MoveSubmitter
	journal TurnRecorder
	events  *events.Hub
	sem     *semaphore.Weighted
	logger  *slog.Logger

	// invocations is touched only by the dispatcher goroutine.
	invocations map[int64]*invocation
	nextID      int64
	doneCh      chan int64

	wg         sync.WaitGroup
	dispatched atomic.Int64
	reaped     atomic.Int64
	active     atomic.Int64
}

// New creates a dispatcher bounding simultaneous engine subprocesses to
// maxEngines across all bots.
func New(q *queue.Queue, tr *tracker.Tracker, eng MoveEngine, submit MoveSubmitter, rec TurnRecorder, hub *events.Hub, maxEngines int64) *Dispatcher {
	if maxEngines <= 0 {
		maxEngines = 1
	}
	return &Dispatcher{
		queue:       q,
		tracker:     tr,
		engine:      eng,
		submit:      submit,
		journal:     rec,
		events:      hub,
		sem:         semaphore.NewWeighted(maxEngines),
		logger:      log.WithComponent("dispatch"),
		invocations: make(map[int64]*invocation),
		doneCh:      make(chan int64, 256),
	}
}

// Start runs the dispatch loop until ctx is cancelled or the queue is closed
// and drained, then waits for outstanding workers to finish.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("dispatch loop started")
	defer d.logger.Info("dispatch loop stopped")

	for {
		turn, err := d.queue.Pop(ctx)
		if err != nil {
			d.drain()
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}

		d.spawn(ctx, turn)
		d.reap()
	}
}

// spawn starts an engine worker for turn without waiting for it.
func (d *Dispatcher) spawn(ctx context.Context, turn *bot.Turn) {
	d.nextID++
	inv := &invocation{id: d.nextID, turn: turn, startedAt: time.Now()}
	d.invocations[inv.id] = inv
	d.dispatched.Add(1)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.processTurn(ctx, turn)
		d.doneCh <- inv.id
	}()
}

// drain blocks until every outstanding worker has finished, reaping as they
// complete so none of them block on the completion channel.
func (d *Dispatcher) drain() {
	d.logger.Info("draining outstanding invocations", "outstanding", len(d.invocations))

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	for {
		select {
		case id := <-d.doneCh:
			d.reapOne(id)
		case <-finished:
			d.reap()
			return
		}
	}
}

// reap removes invocations whose worker has already finished.
func (d *Dispatcher) reap() {
	for {
		select {
		case id := <-d.doneCh:
			d.reapOne(id)
		default:
			return
		}
	}
}

func (d *Dispatcher) reapOne(id int64) {
	if inv, ok := d.invocations[id]; ok {
		d.logger.Debug("reaped invocation", "turn_id", inv.turn.ID, "took", time.Since(inv.startedAt))
		delete(d.invocations, id)
		d.reaped.Add(1)
	}
}

// Stats returns counters safe to read from other goroutines.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched: d.dispatched.Load(),
		Reaped:     d.reaped.Load(),
		Active:     d.active.Load(),
	}
}
