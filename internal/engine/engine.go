// Package engine drives one external move-calculation engine subprocess per
// turn over its line-oriented stdin/stdout protocol. No engine state is kept
// between turns; every invocation launches and discards its own process.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/hivegame/botherd/internal/bot"
	"github.com/hivegame/botherd/internal/log"
)

const (
	// maxStderrBytes caps the amount of stderr captured from the engine.
	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before SIGKILL.
	terminationGracePeriod = 5 * time.Second

	// maxLineBytes bounds a single engine output line.
	maxLineBytes = 1 << 20
)

// Driver launches engine subprocesses and runs the move-request conversation.
// The conversation is: wait for the startup banner terminator, send the game
// string, send a bestmove request carrying the bot's move budget, and read
// until the finalized move arrives.
type Driver struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewDriver creates a driver whose per-turn engine conversation is bounded by
// timeout. A hung engine is terminated rather than holding its concurrency
// permit forever.
func NewDriver(timeout time.Duration) *Driver {
	return &Driver{
		timeout: timeout,
		logger:  log.WithComponent("engine"),
	}
}

// BestMove launches b's configured engine, feeds it gameString, and returns
// the engine's finalized move. The second return value is the captured
// (truncated) stderr, returned on every path for diagnostics. A timeout is
// reported as context.DeadlineExceeded.
func (d *Driver) BestMove(ctx context.Context, b *bot.Bot, gameString string) (string, string, error) {
	argv, err := shellquote.Split(b.EngineCommand)
	if err != nil {
		return "", "", fmt.Errorf("parse engine command %q: %w", b.EngineCommand, err)
	}
	if len(argv) == 0 {
		return "", "", fmt.Errorf("engine command for bot %q is empty", b.Name)
	}

	cmd := exec.Command(argv[0], argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", "", fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("create stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.logger.Debug("spawning engine", "bot", b.Name, "command", argv[0], "timeout", d.timeout)

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("start engine: %w", err)
	}

	// The conversation goroutine owns both pipes and reaps the process; it is
	// the only caller of cmd.Wait.
	outCh := make(chan outcome, 1)
	go func() {
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		move, convErr := converse(stdin, sc, gameString, b.MoveBudget)
		_ = stdin.Close()
		_, _ = io.Copy(io.Discard, stdout)
		outCh <- outcome{move: move, convErr: convErr, waitErr: cmd.Wait()}
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case o := <-outCh:
		errOut := truncateStderr(stderr.String())
		if o.convErr != nil {
			return "", errOut, o.convErr
		}
		if o.waitErr != nil {
			var exitErr *exec.ExitError
			if errors.As(o.waitErr, &exitErr) {
				d.logger.Warn("engine exited with non-zero status", "bot", b.Name, "exit_code", exitErr.ExitCode())
			} else {
				return "", errOut, fmt.Errorf("wait for engine: %w", o.waitErr)
			}
		}
		return o.move, errOut, nil

	case <-timer.C:
		d.logger.Warn("engine timed out, sending SIGTERM", "bot", b.Name, "timeout", d.timeout)
		d.terminate(cmd, outCh, b.Name)
		return "", truncateStderr(stderr.String()), context.DeadlineExceeded

	case <-ctx.Done():
		d.logger.Info("engine cancelled, sending SIGTERM", "bot", b.Name)
		d.terminate(cmd, outCh, b.Name)
		return "", truncateStderr(stderr.String()), ctx.Err()
	}
}

// outcome is what the conversation goroutine hands back.
type outcome struct {
	move    string
	convErr error
	waitErr error
}

// terminate enforces the SIGTERM -> grace -> SIGKILL ladder and waits for the
// conversation goroutine to reap the process.
func (d *Driver) terminate(cmd *exec.Cmd, outCh <-chan outcome, botName string) {
	if cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			d.logger.Error("failed to send SIGTERM", "bot", botName, "error", err)
		}
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-outCh:
		d.logger.Info("engine exited after SIGTERM", "bot", botName)
	case <-grace.C:
		d.logger.Warn("engine did not exit after SIGTERM, sending SIGKILL", "bot", botName)
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				d.logger.Error("failed to send SIGKILL", "bot", botName, "error", err)
			}
		}
		<-outCh
	}
}

// converse runs the protocol exchange: banner, position setup, move request.
func converse(stdin io.Writer, sc *bufio.Scanner, gameString, budget string) (string, error) {
	if err := awaitOK(sc); err != nil {
		return "", fmt.Errorf("engine banner: %w", err)
	}
	if err := send(stdin, "newgame "+gameString); err != nil {
		return "", err
	}
	if err := awaitOK(sc); err != nil {
		return "", fmt.Errorf("newgame: %w", err)
	}
	if err := send(stdin, "bestmove "+budget); err != nil {
		return "", err
	}
	move, err := readMove(sc)
	if err != nil {
		return "", fmt.Errorf("bestmove: %w", err)
	}
	// Ask the engine to exit; if it ignores us the pipe close will do it.
	_ = send(stdin, "exit")
	return move, nil
}

func send(w io.Writer, line string) error {
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		return fmt.Errorf("write %q: %w", firstWord(line), err)
	}
	return nil
}

// awaitOK consumes output until the "ok" terminator. An "err" line aborts.
func awaitOK(sc *bufio.Scanner) error {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "ok" {
			return nil
		}
		if strings.HasPrefix(line, "err") {
			return fmt.Errorf("engine error: %s", line)
		}
	}
	return scanFailure(sc)
}

// readMove consumes output until the "ok" terminator and returns the last
// payload line before it: the finalized move.
func readMove(sc *bufio.Scanner) (string, error) {
	move := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "ok":
			if move == "" {
				return "", errors.New("engine sent ok without a move")
			}
			return move, nil
		case strings.HasPrefix(line, "err"):
			return "", fmt.Errorf("engine error: %s", line)
		case line != "":
			move = line
		}
	}
	return "", scanFailure(sc)
}

func scanFailure(sc *bufio.Scanner) error {
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read engine output: %w", err)
	}
	return errors.New("engine closed its output mid-conversation")
}

func firstWord(line string) string {
	if i := strings.IndexByte(line, ' '); i > 0 {
		return line[:i]
	}
	return line
}

func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}
