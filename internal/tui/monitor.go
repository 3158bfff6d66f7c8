// Package tui implements the botherd watch TUI: a live view of the turn
// pipeline fed by the status API and its SSE event stream.
package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hivegame/botherd/internal/events"
)

// --- Styles ---

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	statusQueued  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)
)

// --- Types ---

// TurnRow is the TUI's view of one turn, built from pipeline events.
type TurnRow struct {
	ID          string
	Bot         string
	Fingerprint string
	Status      string
	Move        string
	StartTime   time.Time
	EndTime     time.Time
}

type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	turns     map[string]*TurnRow
	order     []string // newest first
	eventLog  []events.Event
	hubEvents chan events.Event

	status struct {
		UptimeSeconds int64
		QueueDepth    int
		QueueCapacity int
		InFlight      int
		Active        int64
		Dispatched    int64
		Bots          int
		Connected     bool
	}

	turnTable table.Model
}

type eventMsg events.Event

type statusMsg struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	Queue         struct {
		Depth    int `json:"depth"`
		Capacity int `json:"capacity"`
	} `json:"queue"`
	Tracker struct {
		InFlight int `json:"in_flight"`
	} `json:"tracker"`
	Dispatch struct {
		Dispatched int64 `json:"dispatched"`
		Active     int64 `json:"active"`
	} `json:"dispatch"`
	Bots []struct {
		Name string `json:"name"`
	} `json:"bots"`
}

type errMsg error
type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Init ---

func NewMonitor(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Bot", Width: 16},
			{Title: "Position", Width: 16},
			{Title: "Move", Width: 12},
			{Title: "Duration", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		apiURL:    apiURL,
		apiKey:    apiKey,
		turns:     make(map[string]*TurnRow),
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
		turnTable: t,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.subscribeToEvents(),
		m.receiveNextEvent(),
		m.pollStatus(),
		tea.EnterAltScreen,
	)
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.turnTable.SetWidth(m.width - 6)

	case eventMsg:
		m.handleEvent(events.Event(msg))
		m.updateTable()
		return m, m.receiveNextEvent()

	case statusMsg:
		m.status.UptimeSeconds = msg.UptimeSeconds
		m.status.QueueDepth = msg.Queue.Depth
		m.status.QueueCapacity = msg.Queue.Capacity
		m.status.InFlight = msg.Tracker.InFlight
		m.status.Active = msg.Dispatch.Active
		m.status.Dispatched = msg.Dispatch.Dispatched
		m.status.Bots = len(msg.Bots)
		m.status.Connected = true
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return m.fetchStatus()
		})

	case sseDisconnectedMsg:
		m.status.Connected = false
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, m.subscribeToEvents()

	case errMsg:
		m.status.Connected = false
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return m.fetchStatus()
		})
	}

	m.turnTable, cmd = m.turnTable.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(e events.Event) {
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > 50 {
		m.eventLog = m.eventLog[:50]
	}

	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	turnID, _ := data["turn_id"].(string)
	if turnID == "" {
		return
	}

	row, ok := m.turns[turnID]
	if !ok {
		row = &TurnRow{ID: turnID}
		m.turns[turnID] = row
		m.order = append([]string{turnID}, m.order...)
		if len(m.order) > 100 {
			evict := m.order[100:]
			m.order = m.order[:100]
			for _, id := range evict {
				delete(m.turns, id)
			}
		}
	}
	if b, ok := data["bot"].(string); ok {
		row.Bot = b
	}
	if fp, ok := data["fingerprint"].(string); ok {
		row.Fingerprint = fp
	}

	switch e.Type {
	case events.TypeTurnEnqueued:
		if row.Status == "" {
			row.Status = "queued"
		}
	case events.TypeTurnStarted:
		row.Status = "running"
		row.StartTime = e.At
	case events.TypeTurnCompleted:
		row.Status = "succeeded"
		row.EndTime = e.At
		if mv, ok := data["move"].(string); ok {
			row.Move = mv
		}
	case events.TypeTurnFailed:
		row.Status, _ = data["status"].(string)
		if row.Status == "" {
			row.Status = "failed"
		}
		row.EndTime = e.At
	}
}

func (m *Model) updateTable() {
	rows := make([]table.Row, 0, len(m.order))
	for _, id := range m.order {
		rows = append(rows, m.turnToRow(m.turns[id]))
	}
	m.turnTable.SetRows(rows)
}

func (m *Model) turnToRow(row *TurnRow) table.Row {
	statusSym := "○"
	switch row.Status {
	case "queued":
		statusSym = statusQueued.Render("○")
	case "running":
		statusSym = statusRunning.Render("◉")
	case "succeeded":
		statusSym = statusOK.Render("●")
	case "failed":
		statusSym = statusFailed.Render("∅")
	case "timed_out":
		statusSym = statusFailed.Render("◑")
	}

	duration := "-"
	if !row.StartTime.IsZero() {
		end := row.EndTime
		if end.IsZero() {
			end = time.Now()
		}
		duration = end.Sub(row.StartTime).Round(time.Millisecond).String()
	}

	fp := row.Fingerprint
	if len(fp) > 16 {
		fp = fp[:16]
	}

	return table.Row{
		statusSym,
		row.Bot,
		fp,
		row.Move,
		duration,
	}
}

// --- View ---

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	header := m.renderHeader()
	turnsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Turns"),
			m.turnTable.View(),
		),
	)

	eventsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Event Stream"),
			m.renderEvents(),
		),
	)

	help := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(" [q] Quit • [↑/↓] Scroll Turns")

	return docStyle.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			turnsView,
			eventsView,
			help,
		),
	)
}

func (m Model) renderHeader() string {
	status := statusOK.Render("CONNECTED")
	if !m.status.Connected {
		status = statusFailed.Render("DISCONNECTED")
	}

	uptime := time.Duration(m.status.UptimeSeconds) * time.Second

	items := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Uptime: %s", uptime.String()),
		fmt.Sprintf("Queue: %d/%d", m.status.QueueDepth, m.status.QueueCapacity),
		fmt.Sprintf("Engines: %d  In-flight: %d  Bots: %d", m.status.Active, m.status.InFlight, m.status.Bots),
	}

	return borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width((m.width-4)/4).Render(items[0]),
			lipgloss.NewStyle().Width((m.width-4)/4).Render(items[1]),
			lipgloss.NewStyle().Width((m.width-4)/4).Render(items[2]),
			lipgloss.NewStyle().Width((m.width-4)/4).Render(items[3]),
		),
	)
}

func (m Model) renderEvents() string {
	var lines []string
	for i, e := range m.eventLog {
		if i >= 10 {
			break
		}
		ts := e.At.Format("15:04:05")
		lines = append(lines, fmt.Sprintf("%s | %-18s | %s", ts, e.Type, string(e.Data)))
	}
	if len(lines) == 0 {
		return "  No events yet..."
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// --- Commands ---

// subscribeToEvents connects to the SSE /v1/events endpoint and feeds parsed
// events into the channel. Returns sseDisconnectedMsg when the stream drops.
func (m Model) subscribeToEvents() tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{}
		req, err := http.NewRequest("GET", m.apiURL+"/v1/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+m.apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var current struct {
			id   int64
			typ  string
			data string
		}

		for scanner.Scan() {
			line := scanner.Text()

			if line == "" {
				if current.data != "" {
					m.hubEvents <- events.Event{
						ID:   current.id,
						Type: current.typ,
						At:   time.Now(),
						Data: []byte(current.data),
					}
					current.id, current.typ, current.data = 0, "", ""
				}
				continue
			}

			if strings.HasPrefix(line, "id: ") {
				if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
					current.id = id
				}
			} else if strings.HasPrefix(line, "event: ") {
				current.typ = line[7:]
			} else if strings.HasPrefix(line, "data: ") {
				current.data = line[6:]
			}
		}

		return sseDisconnectedMsg{}
	}
}

func (m Model) receiveNextEvent() tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-m.hubEvents)
	}
}

func (m Model) pollStatus() tea.Cmd {
	return func() tea.Msg {
		return m.fetchStatus()
	}
}

func (m Model) fetchStatus() tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest("GET", m.apiURL+"/v1/status", nil)
	if err != nil {
		return errMsg(err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var s statusMsg
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return errMsg(err)
	}
	return s
}
