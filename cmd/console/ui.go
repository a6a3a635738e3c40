package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/hollowvale/companion-engine/pkg/chat"
	"github.com/hollowvale/companion-engine/pkg/room"
	"github.com/hollowvale/companion-engine/pkg/sentiment"
	"github.com/hollowvale/companion-engine/pkg/state"
)

const PlaceHolderText = "Say something, or /select an NPC..."

// greetingPolls is how many times the UI refetches the session after an
// action, so a greeting streaming on the server shows up incrementally.
const greetingPolls = 8

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	session      *state.SessionState
	room         *room.Room
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool
	status       string

	// Room selection state
	showRoomModal bool
	rooms         []string
	selectedRoom  int
	loadingRooms  bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int

	// Remaining session refetches after an action
	pollsLeft int
}

type roomsLoadedMsg struct {
	rooms []string
	err   error
}

type sessionCreatedMsg struct {
	session *state.SessionState
	room    *room.Room
	err     error
}

type sessionMsg struct {
	session *state.SessionState
	err     error
}

type actionDoneMsg struct {
	err error
}

type progressTickMsg struct{}

type pollTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narrationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	hostileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:        cfg,
		client:        client,
		textarea:      ta,
		chatViewport:  chatVp,
		metaViewport:  metaVp,
		ready:         false,
		showRoomModal: true,
		loadingRooms:  true,
		selectedRoom:  0,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	if m.showRoomModal {
		return m.loadRooms()
	}
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showRoomModal {
		return m.updateRoomModal(msg)
	}
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())
		m.ready = true

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.textarea.Reset()
			m.loading = true
			m.status = ""
			m.progressTick = 0
			return m, tea.Batch(m.sendChat(input), progressTick())
		}

	case actionDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.writeChatContent()
			return m, nil
		}
		m.err = nil
		m.pollsLeft = greetingPolls
		return m, tea.Batch(m.refreshSession(), pollTick())

	case sessionMsg:
		if msg.err == nil && msg.session != nil {
			m.session = msg.session
			m.writeChatContent()
			m.metaViewport.SetContent(m.writeMetadata())
		}

	case pollTickMsg:
		if m.pollsLeft > 0 {
			m.pollsLeft--
			return m, tea.Batch(m.refreshSession(), pollTick())
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) layout() {
	chatWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

// writeChatContent rebuilds the chat panel from the session timeline.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6

	var content strings.Builder
	content.WriteString(titleStyle.Render("COMPANION ENGINE") + "\n\n")
	if m.room != nil {
		content.WriteString(m.room.Description + "\n\n")
	}
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 10))) + "\n\n")

	if m.session != nil {
		for _, msg := range m.session.Timeline {
			content.WriteString(formatTimelineMessage(msg, chatWidth) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}
	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	if m.status != "" {
		content.WriteString(promptStyle.Render(m.status) + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func formatTimelineMessage(msg chat.Message, width int) string {
	switch msg.Role {
	case chat.ChatRoleUser:
		return userStyle.Render("You: ") + wordwrap.String(msg.Content, width-6)
	case chat.ChatRoleAssistant:
		speaker := msg.Metadata[chat.MetaSpeakerName]
		if speaker == "" {
			speaker = "???"
		}
		body := msg.Content
		if msg.Status == chat.StatusStreaming {
			body += " ▌"
		}
		return speakerStyle.Render(speaker+": ") + wordwrap.String(body, width-len(speaker)-2)
	default:
		return narrationStyle.Render(wordwrap.String(msg.Content, width))
	}
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("HOLLOWVALE") + "\n\n")

	if m.session != nil {
		content.WriteString(fmt.Sprintf("Day %d, %s\n\n", m.session.Clock.CurrentDay, m.session.Clock.Phase()))

		if m.session.ConversingName != "" {
			content.WriteString("Talking to:\n" + m.session.ConversingName + "\n\n")
		}
		if m.session.BondedName != "" {
			content.WriteString("Companion:\n" + m.session.BondedName + "\n\n")
		}

		if len(m.session.Relationships) > 0 && m.room != nil {
			content.WriteString("Bonds:\n")
			for _, n := range m.room.NPCs {
				rel, ok := m.session.Relationships[n.ID]
				if !ok {
					continue
				}
				content.WriteString(fmt.Sprintf("• %s: %d (%s)\n", n.Name, rel.Affinity,
					strings.ReplaceAll(string(rel.Tier), "_", " ")))
			}
			content.WriteString("\n")
		}
	}

	if m.room != nil {
		content.WriteString("Present:\n")
		for i, n := range m.room.NPCs {
			name := n.Name
			if n.IsHostile() {
				name = hostileStyle.Render(name + " (hostile)")
			}
			content.WriteString(fmt.Sprintf("%d. %s\n", i+1, name))
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• /select <n>: Talk\n")
	content.WriteString("• /bond: Recruit\n")
	content.WriteString("• /dismiss: Part ways\n")
	content.WriteString("• /leave: Walk away\n")
	content.WriteString("• /copy: Copy last line\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.TrimSpace(input))
	cmd := strings.ToLower(fields[0])
	m.textarea.Reset()
	m.status = ""
	m.err = nil

	switch cmd {
	case "/help":
		helpText := `
Commands:
• /select <number or name> - Approach an NPC
• /bond - Ask the current NPC to join you
• /dismiss - Part ways with your companion
• /leave - Walk away from the current conversation
• /copy - Copy the last spoken line to the clipboard
• Ctrl+C - Quit

Talking to hostile NPCs starts combat. Kind words build bonds over time.
`
		m.status = ""
		m.writeChatContent()
		m.chatViewport.SetContent(m.chatViewport.View() + titleStyle.Render("Help:") + helpText + "\n")
		m.chatViewport.GotoBottom()
		return m, nil

	case "/select":
		if len(fields) < 2 {
			m.status = "Usage: /select <number or name>"
			m.writeChatContent()
			return m, nil
		}
		npcID, ok := m.resolveNPC(strings.Join(fields[1:], " "))
		if !ok {
			m.status = "No such NPC here."
			m.writeChatContent()
			return m, nil
		}
		m.loading = true
		m.progressTick = 0
		return m, tea.Batch(m.doSelect(npcID), progressTick())

	case "/bond":
		m.loading = true
		return m, tea.Batch(m.doBond(), progressTick())

	case "/dismiss":
		m.loading = true
		return m, tea.Batch(m.doDismiss(), progressTick())

	case "/leave":
		m.loading = true
		return m, tea.Batch(m.doLeave(), progressTick())

	case "/copy":
		if line, ok := m.lastSpokenLine(); ok {
			if err := clipboard.WriteAll(line); err != nil {
				m.status = "Clipboard unavailable."
			} else {
				m.status = "Copied."
			}
		} else {
			m.status = "Nothing to copy yet."
		}
		m.writeChatContent()
		return m, nil

	default:
		m.status = "Unknown command. Try /help."
		m.writeChatContent()
		return m, nil
	}
}

// resolveNPC accepts a roster number or a (case-insensitive) name.
func (m ConsoleUI) resolveNPC(arg string) (string, bool) {
	if m.room == nil {
		return "", false
	}
	if idx, err := strconv.Atoi(arg); err == nil {
		if idx >= 1 && idx <= len(m.room.NPCs) {
			return m.room.NPCs[idx-1].ID, true
		}
		return "", false
	}
	for _, n := range m.room.NPCs {
		if strings.EqualFold(n.Name, arg) || n.ID == arg {
			return n.ID, true
		}
	}
	return "", false
}

func (m ConsoleUI) lastSpokenLine() (string, bool) {
	if m.session == nil {
		return "", false
	}
	for i := len(m.session.Timeline) - 1; i >= 0; i-- {
		msg := m.session.Timeline[i]
		if msg.Role == chat.ChatRoleAssistant && msg.Status == chat.StatusComplete {
			return msg.Content, true
		}
	}
	return "", false
}

func (m ConsoleUI) sendChat(message string) tea.Cmd {
	return func() tea.Msg {
		// The console doubles as the emotion hook: a crude valence
		// reading from the typed text rides along with the message.
		var valence *float64
		if v, ok := sentiment.EstimateValence(message); ok {
			valence = &v
		}
		_, err := sendMessage(m.client, m.config.APIBaseURL, m.session.ID, message, valence)
		return actionDoneMsg{err}
	}
}

func (m ConsoleUI) doSelect(npcID string) tea.Cmd {
	return func() tea.Msg {
		_, err := selectNPC(m.client, m.config.APIBaseURL, m.session.ID, npcID)
		return actionDoneMsg{err}
	}
}

func (m ConsoleUI) doBond() tea.Cmd {
	return func() tea.Msg {
		_, err := bondNPC(m.client, m.config.APIBaseURL, m.session.ID)
		return actionDoneMsg{err}
	}
}

func (m ConsoleUI) doDismiss() tea.Cmd {
	return func() tea.Msg {
		_, err := dismissAlly(m.client, m.config.APIBaseURL, m.session.ID)
		return actionDoneMsg{err}
	}
}

func (m ConsoleUI) doLeave() tea.Cmd {
	return func() tea.Msg {
		err := clearTarget(m.client, m.config.APIBaseURL, m.session.ID)
		return actionDoneMsg{err}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	return func() tea.Msg {
		st, err := getSession(m.client, m.config.APIBaseURL, m.session.ID)
		return sessionMsg{st, err}
	}
}

func (m ConsoleUI) loadRooms() tea.Cmd {
	return func() tea.Msg {
		rooms, err := listRooms(m.client, m.config.APIBaseURL)
		return roomsLoadedMsg{rooms, err}
	}
}

func (m ConsoleUI) createSessionInRoom(roomID string) tea.Cmd {
	return func() tea.Msg {
		st, err := createSession(m.client, m.config.APIBaseURL, roomID)
		if err != nil {
			return sessionCreatedMsg{nil, nil, err}
		}
		rm, err := getRoom(m.client, m.config.APIBaseURL, roomID)
		if err != nil {
			return sessionCreatedMsg{nil, nil, err}
		}
		return sessionCreatedMsg{st, rm, nil}
	}
}

func (m ConsoleUI) updateRoomModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case roomsLoadedMsg:
		m.loadingRooms = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.rooms = msg.rooms
		}

	case sessionCreatedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.session = msg.session
			m.room = msg.room
			m.showRoomModal = false
			if m.width > 0 && m.height > 0 {
				m.layout()
			}
			m.writeChatContent()
			m.metaViewport.SetContent(m.writeMetadata())
			m.textarea.Focus()
			m.ready = true
		}
		return m, textarea.Blink

	case tea.KeyMsg:
		if m.loadingRooms || m.err != nil {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selectedRoom > 0 {
				m.selectedRoom--
			}
		case tea.KeyDown:
			if m.selectedRoom < len(m.rooms)-1 {
				m.selectedRoom++
			}
		case tea.KeyEnter:
			if len(m.rooms) > 0 {
				m.loading = true
				return m, m.createSessionInRoom(m.rooms[m.selectedRoom])
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if !m.showRoomModal {
					m.textarea.Focus()
					return m, textarea.Blink
				}
				return m, nil
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Leave Hollowvale?"))
	content.WriteString("\n\n")
	content.WriteString("Your session is saved; companions will wait for you.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderRoomModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	if m.loadingRooms {
		content.WriteString(modalTitleStyle.Render("Loading Rooms..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Fetching the world map..."))
	} else if m.err != nil {
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load rooms: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	} else if m.loading {
		content.WriteString(modalTitleStyle.Render("Entering..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Opening the way..."))
	} else {
		content.WriteString(modalTitleStyle.Render("Where to?"))
		content.WriteString("\n\n")

		for i, id := range m.rooms {
			if i == m.selectedRoom {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", id)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", id)))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showRoomModal {
		return m.renderRoomModal()
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 10))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func pollTick() tea.Cmd {
	return tea.Tick(time.Millisecond*400, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}
