// Package hive is the HTTP client for the remote match service. It is the
// production implementation of the collaborators the pipeline consumes:
// discovering pending turns for a bot and submitting computed moves.
package hive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/hivegame/botherd/internal/bot"
	"github.com/hivegame/botherd/internal/log"
)

const (
	defaultTimeout = 15 * time.Second
	fetchAttempts  = 3
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.WithComponent("hive"),
	}
}

// FetchPendingTurns returns the serialized game strings currently awaiting a
// move from b. Transient failures (network errors, 5xx) are retried a few
// times with backoff before the error is surfaced; 4xx responses fail
// immediately.
func (c *Client) FetchPendingTurns(ctx context.Context, b *bot.Bot) ([]string, error) {
	var games []string
	err := retry.Do(
		func() error {
			var err error
			games, err = c.fetchOnce(ctx, b)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(fetchAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying fetch", "bot", b.Name, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return games, nil
}

func (c *Client) fetchOnce(ctx context.Context, b *bot.Bot) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+b.Endpoint, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+b.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pending turns: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetch pending turns: unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}

	var games []string
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&games); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("decode pending turns: %w", err))
	}
	return games, nil
}

// SubmitMove posts a computed move for the given game back to the match
// service. Submission failures affect only the reporting of this turn; the
// pipeline never retries a turn because its submission failed.
func (c *Client) SubmitMove(ctx context.Context, b *bot.Bot, gameString, move string) error {
	body, err := json.Marshal(map[string]string{
		"game_string": gameString,
		"move":        move,
	})
	if err != nil {
		return fmt.Errorf("encode move: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+b.Endpoint+"/move", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit move: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("submit move: unexpected status %d", resp.StatusCode)
	}
	return nil
}
