package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hivegame/botherd/internal/bot"
)

// writeFakeEngine writes a shell script standing in for a real engine binary
// and returns a launch command for it.
func writeFakeEngine(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-engine.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return "/bin/sh " + path
}

func TestBestMove(t *testing.T) {
	t.Parallel()

	cmd := writeFakeEngine(t, `#!/bin/sh
echo "id fake-engine v1"
echo "ok"
read cmdline
echo "$cmdline"
echo "ok"
read cmdline
echo "wS1"
echo "ok"
read cmdline
exit 0
`)

	d := NewDriver(5 * time.Second)
	b := &bot.Bot{Name: "nokamute1", EngineCommand: cmd, MoveBudget: "depth 1"}

	move, _, err := d.BestMove(context.Background(), b, "Base;InProgress;White[3];wS1")
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if move != "wS1" {
		t.Fatalf("expected move wS1, got %q", move)
	}
}

func TestBestMoveSendsBudget(t *testing.T) {
	t.Parallel()

	// Echoes the bestmove request line back as the move so the test can see
	// exactly what was sent.
	cmd := writeFakeEngine(t, `#!/bin/sh
echo "ok"
read cmdline
echo "ok"
read cmdline
echo "$cmdline"
echo "ok"
read cmdline
exit 0
`)

	d := NewDriver(5 * time.Second)
	b := &bot.Bot{Name: "nokamute2", EngineCommand: cmd, MoveBudget: "time 00:00:01"}

	move, _, err := d.BestMove(context.Background(), b, "Base;InProgress;Black[2]")
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if move != "bestmove time 00:00:01" {
		t.Fatalf("engine did not receive the move budget, saw %q", move)
	}
}

func TestBestMoveSpawnFailure(t *testing.T) {
	t.Parallel()

	d := NewDriver(time.Second)
	b := &bot.Bot{Name: "ghost", EngineCommand: "/nonexistent/engine uhp", MoveBudget: "depth 1"}

	_, _, err := d.BestMove(context.Background(), b, "Base;NotStarted;White[1]")
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if !strings.Contains(err.Error(), "start engine") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBestMoveProtocolError(t *testing.T) {
	t.Parallel()

	cmd := writeFakeEngine(t, `#!/bin/sh
echo "ok"
read cmdline
echo "err invalid game notation"
exit 1
`)

	d := NewDriver(5 * time.Second)
	b := &bot.Bot{Name: "nokamute1", EngineCommand: cmd, MoveBudget: "depth 1"}

	_, _, err := d.BestMove(context.Background(), b, "garbage")
	if err == nil {
		t.Fatal("expected protocol error")
	}
	if !strings.Contains(err.Error(), "err invalid game notation") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBestMoveTimeout(t *testing.T) {
	t.Parallel()

	// exec replaces the shell so SIGTERM reaches the hanging process and the
	// stdout pipe actually closes.
	cmd := writeFakeEngine(t, `#!/bin/sh
echo "ok"
read cmdline
echo "ok"
read cmdline
exec sleep 60
`)

	d := NewDriver(200 * time.Millisecond)
	b := &bot.Bot{Name: "slowpoke", EngineCommand: cmd, MoveBudget: "depth 20"}

	start := time.Now()
	_, _, err := d.BestMove(context.Background(), b, "Base;InProgress;White[9]")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout took too long to enforce: %v", elapsed)
	}
}

func TestBestMoveStderrCaptured(t *testing.T) {
	t.Parallel()

	cmd := writeFakeEngine(t, `#!/bin/sh
echo "thinking really hard" >&2
echo "ok"
read cmdline
echo "ok"
read cmdline
echo "bA1"
echo "ok"
read cmdline
exit 0
`)

	d := NewDriver(5 * time.Second)
	b := &bot.Bot{Name: "nokamute1", EngineCommand: cmd, MoveBudget: "depth 1"}

	_, stderr, err := d.BestMove(context.Background(), b, "Base;InProgress;Black[4]")
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if !strings.Contains(stderr, "thinking really hard") {
		t.Fatalf("stderr not captured: %q", stderr)
	}
}

func TestBestMoveEmptyCommand(t *testing.T) {
	t.Parallel()

	d := NewDriver(time.Second)
	b := &bot.Bot{Name: "unset", EngineCommand: "", MoveBudget: "depth 1"}

	if _, _, err := d.BestMove(context.Background(), b, "Base;NotStarted;White[1]"); err == nil {
		t.Fatal("expected error for empty engine command")
	}
}
