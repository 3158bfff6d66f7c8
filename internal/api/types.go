package api

import (
	"github.com/hivegame/botherd/internal/dispatch"
	"github.com/hivegame/botherd/internal/journal"
	"github.com/hivegame/botherd/internal/tracker"
)

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
}

// QueueStatus is the queue section of StatusResponse.
type QueueStatus struct {
	Depth    int `json:"depth"`
	Capacity int `json:"capacity"`
}

// BotStatus is one configured bot in StatusResponse.
type BotStatus struct {
	Name       string `json:"name"`
	Endpoint   string `json:"endpoint"`
	MoveBudget string `json:"move_budget"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	Service       string         `json:"service"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Queue         QueueStatus    `json:"queue"`
	Tracker       tracker.Stats  `json:"tracker"`
	Dispatch      dispatch.Stats `json:"dispatch"`
	Bots          []BotStatus    `json:"bots"`
}

// TurnsResponse is returned by GET /v1/turns.
type TurnsResponse struct {
	Turns []journal.Entry `json:"turns"`
}
