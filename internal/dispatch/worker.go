package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hivegame/botherd/internal/bot"
	"github.com/hivegame/botherd/internal/events"
	"github.com/hivegame/botherd/internal/journal"
	"github.com/hivegame/botherd/internal/log"
)

// journalWriteTimeout bounds the journal insert so a busy database cannot
// hold a finished worker open.
const journalWriteTimeout = 5 * time.Second

// processTurn is one engine worker invocation. It acquires a concurrency
// permit, drives the engine, optionally submits the move, and always marks
// the fingerprint completed exactly once, on every exit path.
func (d *Dispatcher) processTurn(ctx context.Context, turn *bot.Turn) {
	logger := log.WithTurn(turn.ID).With("bot", turn.Bot.Name, "fingerprint", turn.Fingerprint.Short())

	// Runs after the permit release below, so the fingerprint unblocks
	// re-discovery no matter how the worker exits.
	defer d.tracker.MarkCompleted(turn.Fingerprint)

	if err := d.sem.Acquire(ctx, 1); err != nil {
		logger.Warn("abandoning turn, shutdown before an engine slot freed", "error", err)
		return
	}
	defer d.sem.Release(1)

	d.active.Add(1)
	defer d.active.Add(-1)

	startedAt := time.Now().UTC()
	logger.Info("worker started")
	d.events.Publish(events.TypeTurnStarted, map[string]any{
		"bot":     turn.Bot.Name,
		"turn_id": turn.ID,
	})

	move, stderr, err := d.engine.BestMove(ctx, turn.Bot, turn.GameString)

	entry := journal.Entry{
		ID:          turn.ID,
		Bot:         turn.Bot.Name,
		Fingerprint: turn.Fingerprint.String(),
		Stderr:      stderr,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	}

	if err != nil {
		entry.Status = journal.StatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			entry.Status = journal.StatusTimedOut
		}
		entry.LastError = err.Error()
		logger.Error("engine failed", "status", entry.Status, "error", err)
		d.events.Publish(events.TypeTurnFailed, map[string]any{
			"bot":     turn.Bot.Name,
			"turn_id": turn.ID,
			"status":  entry.Status,
			"error":   err.Error(),
		})
		d.record(entry, logger)
		return
	}

	logger.Info("bestmove computed", "move", move, "took", time.Since(startedAt))

	if d.submit != nil {
		if err := d.submit.SubmitMove(ctx, turn.Bot, turn.GameString, move); err != nil {
			// The move was computed; a lost submission is reported but the
			// turn is not retried.
			logger.Error("move submission failed", "move", move, "error", err)
		}
	}

	entry.Status = journal.StatusSucceeded
	entry.Move = move
	d.events.Publish(events.TypeTurnCompleted, map[string]any{
		"bot":     turn.Bot.Name,
		"turn_id": turn.ID,
		"move":    move,
	})
	d.record(entry, logger)
}

// record journals the finished invocation on a detached context so a
// cancelled pipeline still gets its audit row.
func (d *Dispatcher) record(entry journal.Entry, logger *slog.Logger) {
	if d.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := d.journal.Record(ctx, entry); err != nil {
		logger.Error("failed to journal turn", "error", err)
	}
}
