package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hivegame/botherd/internal/api"
	"github.com/hivegame/botherd/internal/config"
	"github.com/hivegame/botherd/internal/dispatch"
	"github.com/hivegame/botherd/internal/engine"
	"github.com/hivegame/botherd/internal/events"
	"github.com/hivegame/botherd/internal/hive"
	"github.com/hivegame/botherd/internal/journal"
	"github.com/hivegame/botherd/internal/lock"
	"github.com/hivegame/botherd/internal/log"
	"github.com/hivegame/botherd/internal/producer"
	"github.com/hivegame/botherd/internal/queue"
	"github.com/hivegame/botherd/internal/storage"
	"github.com/hivegame/botherd/internal/tracker"
	"github.com/hivegame/botherd/internal/tui"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "watch":
		return runWatch(args)
	case "config":
		if len(args) < 1 || args[0] != "check" {
			fmt.Fprintln(os.Stderr, "Usage: botherd config check [--config PATH]")
			return 1
		}
		return runConfigCheck(args[1:])
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("botherd starting", "version", version, "config", *configPath, "bots", len(cfg.Bots))

	pidLockPath := filepath.Join(filepath.Dir(cfg.Service.JournalPath), "botherd.lock")
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.Service.JournalPath)
	if err != nil {
		logger.Error("failed to open journal database", "path", cfg.Service.JournalPath, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("journal database opened", "path", cfg.Service.JournalPath)

	jrnl := journal.New(db)
	hub := events.NewHub(256)
	tr := tracker.New(cfg.Service.TrackerRetention)
	q := queue.New(cfg.Service.QueueCapacity)
	match := hive.NewClient(cfg.Service.BaseURL)
	driver := engine.NewDriver(cfg.Service.EngineTimeout)

	var submit dispatch.MoveSubmitter
	if cfg.Service.SubmitMoves {
		submit = match
	} else {
		logger.Warn("move submission disabled, running compute-only")
	}
	disp := dispatch.New(q, tr, driver, submit, jrnl, hub, int64(cfg.Service.MaxEngines))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, len(cfg.Bots)+2)
	dispDone := make(chan struct{})

	go func() {
		defer close(dispDone)
		if err := disp.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("dispatcher: %w", err)
		}
	}()

	for _, b := range cfg.BotList() {
		p := producer.New(b, match, tr, q, hub, cfg.Service.PollInterval, cfg.Service.PollJitter)
		go func() {
			if err := p.Run(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("producer %s: %w", b.Name, err)
			}
		}()
	}

	go tr.RunCleanup(ctx, cfg.Service.CleanupInterval, hub)
	go runJournalPrune(ctx, jrnl, cfg.Service.JournalRetention, logger)

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.APIKey,
		}, q, tr, disp, jrnl, cfg.BotList(), hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("botherd running (press Ctrl+C to stop)")

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		exitCode = 1
	}

	// Stop producers, then let the dispatcher drain what it already holds.
	cancel()
	q.Close()
	select {
	case <-dispDone:
	case <-time.After(10 * time.Second):
		logger.Warn("dispatcher did not drain in time, exiting anyway")
	}

	logger.Info("botherd stopped")
	return exitCode
}

func runJournalPrune(ctx context.Context, jrnl *journal.Journal, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := jrnl.Prune(ctx, retention)
			if err != nil {
				logger.Error("journal prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned journal entries", "removed", n)
			}
		}
	}
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Status API URL")
	apiKey := fs.String("api-key", os.Getenv("BOTHERD_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or BOTHERD_API_KEY env var.")
		return 1
	}

	m := tui.NewMonitor(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}

	fmt.Printf("Configuration OK: %d bot(s), queue capacity %d, max engines %d\n",
		len(cfg.Bots), cfg.Service.QueueCapacity, cfg.Service.MaxEngines)
	return 0
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("botherd %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: strings.TrimSpace(buildDate),
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}
	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`botherd - Hive game bot pipeline

Polls match endpoints for pending turns, deduplicates positions, and runs
UHP engines to compute and submit moves.

Usage:
  botherd <command> [flags]

Commands:
  start           Run the pipeline in the foreground
  watch           Real-time monitoring TUI (requires the status API)
  config check    Validate a configuration file
  version         Show version information
  help            Show this help

Flags for start:
  --config PATH   Configuration file (default: config.yaml)

Flags for watch:
  --api-url URL   Status API URL (default: http://localhost:8080)
  --api-key KEY   API Bearer Token (or BOTHERD_API_KEY env var)
`)
}
