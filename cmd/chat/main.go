// Command chat is a terminal client for the gateway's webchat
// transport. It speaks the same wire protocol as the browser client.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

var (
	teal     = lipgloss.Color("#0d7377")
	offWhite = lipgloss.Color("#f8f7f4")

	chatStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(teal).
			Padding(1)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(teal).
			Padding(0, 1)

	userStyle      = lipgloss.NewStyle().Foreground(teal).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(offWhite)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#cc4444"))
)

type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type incomingMsg wsFrame
type connClosedMsg struct{ err error }

type model struct {
	conn      *websocket.Conn
	viewport  viewport.Model
	input     textinput.Model
	lines     []string
	sessionID string
	width     int
	height    int
}

func newModel(conn *websocket.Conn) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()

	vp := viewport.New(0, 0)
	vp.SetContent("Connecting...\n")

	return model{conn: conn, viewport: vp, input: ti}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.readFrame())
}

// readFrame blocks on the websocket and hands the next frame to Update.
func (m model) readFrame() tea.Cmd {
	conn := m.conn
	return func() tea.Msg {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return connClosedMsg{err: err}
		}
		return incomingMsg(frame)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 6

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.conn.Close()
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.conn.WriteJSON(wsFrame{Type: "text", Content: text})
				m.appendLine(userStyle.Render("you: ") + text)
				m.input.Reset()
			}
		}

	case incomingMsg:
		switch msg.Type {
		case "session":
			m.sessionID = msg.Content
			m.appendLine(assistantStyle.Render("connected, session " + msg.Content))
		case "text":
			m.appendLine(assistantStyle.Render("assistant: " + msg.Content))
		case "error":
			m.appendLine(errorStyle.Render("error: " + msg.Content))
		}
		cmds = append(cmds, m.readFrame())

	case connClosedMsg:
		m.appendLine(errorStyle.Render("connection closed"))
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	return chatStyle.Width(m.width-2).Render(m.viewport.View()) + "\n" +
		inputStyle.Width(m.width-2).Render(m.input.View())
}

func main() {
	addr := flag.String("addr", "ws://localhost:18701/ws", "Gateway webchat URL")
	session := flag.String("session", "", "Existing session id to resume")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}

	initFrame, _ := json.Marshal(wsFrame{Type: "init", Content: *session})
	if err := conn.WriteMessage(websocket.TextMessage, initFrame); err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(conn), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
