package producer

import (
	"context"

	"github.com/hivegame/botherd/internal/bot"
)

//go:generate mockgen -destination=mocks/mock_match.go -package=mocks github.com/hivegame/botherd/internal/producer MatchService

// MatchService discovers the pending positions a bot owes a move on. The
// production implementation is the hive client; tests inject mocks.
type MatchService interface {
	FetchPendingTurns(ctx context.Context, b *bot.Bot) ([]string, error)
}
