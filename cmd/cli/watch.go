package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/yourusername/media-queue-go/internal/domain"
)

const maxRecent = 5

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// socketFrame is one message from the realtime channel
type socketFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type socketClosedMsg struct{ err error }

// activeDownload is what the watcher knows about the running job
type activeDownload struct {
	id      string
	url     string
	title   string
	status  string
	percent float64
	speed   string
	eta     string
}

type watchModel struct {
	conn     *websocket.Conn
	jobs     []*domain.Job
	draining bool
	active   *activeDownload
	recent   []string
	notice   string
	err      error
	bar      progress.Model
	width    int
}

func newWatchModel(conn *websocket.Conn) watchModel {
	return watchModel{
		conn: conn,
		bar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func runWatch(socketURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(socketURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", socketURL, err)
	}
	defer conn.Close()

	final, err := tea.NewProgram(newWatchModel(conn)).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(watchModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

// readFrame blocks for the next frame; bubbletea runs it off the UI goroutine
func readFrame(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		var frame socketFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return socketClosedMsg{err: err}
		}
		return frame
	}
}

func (m watchModel) send(event string) tea.Cmd {
	conn := m.conn
	return func() tea.Msg {
		if conn == nil {
			return nil
		}
		if err := conn.WriteJSON(map[string]string{"event": event}); err != nil {
			return socketClosedMsg{err: err}
		}
		return nil
	}
}

func (m watchModel) Init() tea.Cmd {
	if m.conn == nil {
		return nil
	}
	return readFrame(m.conn)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(60, max(10, msg.Width-20))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			return m, m.send("start_queue_download")
		case "p":
			return m, m.send("stop_queue_download")
		case "c":
			return m, m.send("clear_queue")
		}
		return m, nil

	case socketFrame:
		m = m.apply(msg)
		if m.conn == nil {
			return m, nil
		}
		return m, readFrame(m.conn)

	case socketClosedMsg:
		if !websocket.IsCloseError(msg.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			m.err = fmt.Errorf("connection lost: %w", msg.err)
		}
		return m, tea.Quit
	}
	return m, nil
}

// apply folds one realtime frame into the view state
func (m watchModel) apply(frame socketFrame) watchModel {
	switch frame.Event {
	case "queue_updated":
		var snap domain.QueueSnapshot
		if json.Unmarshal(frame.Data, &snap) == nil {
			m.jobs = snap.Jobs
			m.draining = snap.Draining
		}

	case "download_started":
		var data struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		}
		_ = json.Unmarshal(frame.Data, &data)
		m.active = &activeDownload{id: data.ID, url: data.URL, status: "Starting..."}

	case "status":
		var data struct {
			Msg     string `json:"msg"`
			Percent string `json:"percent"`
		}
		_ = json.Unmarshal(frame.Data, &data)
		if m.active != nil {
			m.active.status = data.Msg
			if data.Percent != "" {
				m.active.percent = parsePercent(data.Percent)
			}
		}

	case "info":
		var data struct {
			Title string `json:"title"`
			Msg   string `json:"msg"`
		}
		_ = json.Unmarshal(frame.Data, &data)
		if m.active != nil {
			if data.Title != "" {
				m.active.title = data.Title
			}
			m.active.status = data.Msg
		}

	case "progress":
		var data struct {
			Percent string `json:"percent"`
			Msg     string `json:"msg"`
			Speed   string `json:"speed"`
			ETA     string `json:"eta"`
		}
		_ = json.Unmarshal(frame.Data, &data)
		if m.active != nil {
			m.active.percent = parsePercent(data.Percent)
			m.active.speed = data.Speed
			m.active.eta = data.ETA
			if data.Msg != "" {
				m.active.status = data.Msg
			}
		}

	case "item_completed":
		var data struct {
			Success bool   `json:"success"`
			Title   string `json:"title"`
		}
		_ = json.Unmarshal(frame.Data, &data)
		line := watchOKStyle.Render("✓ ") + data.Title
		if !data.Success {
			line = watchErrorStyle.Render("✗ ") + data.Title
		}
		m.recent = append(m.recent, line)
		if len(m.recent) > maxRecent {
			m.recent = m.recent[len(m.recent)-maxRecent:]
		}
		m.active = nil

	case "all_downloads_complete":
		m.active = nil
		m.notice = "All downloads complete"

	case "error":
		var data struct {
			Msg string `json:"msg"`
		}
		_ = json.Unmarshal(frame.Data, &data)
		m.notice = watchErrorStyle.Render(data.Msg)
	}
	return m
}

func (m watchModel) View() string {
	var b strings.Builder

	state := watchMutedStyle.Render("idle")
	if m.draining {
		state = watchOKStyle.Render("draining")
	}
	b.WriteString(watchTitleStyle.Render("media queue") + "  " + state + "\n\n")

	if m.active != nil {
		name := m.active.title
		if name == "" {
			name = m.active.url
		}
		lines := []string{
			truncate(name, 70),
			m.bar.ViewAs(m.active.percent / 100),
			m.active.status,
		}
		if m.active.speed != "" || m.active.eta != "" {
			lines = append(lines, watchMutedStyle.Render(fmt.Sprintf("%s  ETA %s", m.active.speed, m.active.eta)))
		}
		b.WriteString(watchPanelStyle.Render(strings.Join(lines, "\n")) + "\n")
	}

	pending := 0
	for _, job := range m.jobs {
		if job.IsPending() {
			pending++
		}
	}
	b.WriteString(fmt.Sprintf("\n%d pending\n", pending))
	for _, job := range m.jobs {
		if job.IsPending() {
			b.WriteString(watchMutedStyle.Render("  · "+truncate(job.DisplayTitle(), 70)) + "\n")
		}
	}

	if len(m.recent) > 0 {
		b.WriteString("\nRecent\n")
		for _, line := range m.recent {
			b.WriteString("  " + line + "\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n" + m.notice + "\n")
	}

	b.WriteString("\n" + watchMutedStyle.Render("s start · p stop · c clear · q quit") + "\n")
	return b.String()
}

// parsePercent reads "42.5%" as 42.5
func parsePercent(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0
	}
	return min(100, max(0, v))
}
