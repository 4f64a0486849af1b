package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alegralabs/remote-desk/pkg/rtc"
	"github.com/alegralabs/remote-desk/pkg/session"
	"github.com/alegralabs/remote-desk/pkg/signal"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	urlStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("13"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	promptBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(0, 1)
)

func copyToClipboard(text string) error {
	for _, tool := range [][]string{
		{"pbcopy"},
		{"xclip", "-selection", "clipboard"},
		{"wl-copy"},
	} {
		if _, err := exec.LookPath(tool[0]); err != nil {
			continue
		}
		cmd := exec.Command(tool[0], tool[1:]...)
		cmd.Stdin = strings.NewReader(text)
		return cmd.Run()
	}
	return fmt.Errorf("no clipboard tool found")
}

// Messages
type statusChangedMsg struct{}

type tickMsg time.Time

type flashClearMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func flashCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return flashClearMsg{}
	})
}

type model struct {
	config Config
	ctrl   *session.Controller

	typed       string
	flash       string
	confirmQuit bool
	quitting    bool
}

func initialModel(config Config, ctrl *session.Controller) model {
	return model{config: config, ctrl: ctrl}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case statusChangedMsg:
		return m, nil
	case tickMsg:
		return m, tickCmd()
	case flashClearMsg:
		m.flash = ""
		return m, nil
	}
	return m, nil
}

func (m model) copyRoomID(id string) (tea.Model, tea.Cmd) {
	if err := copyToClipboard(id); err != nil {
		m.flash = "Copy failed: " + err.Error()
	} else {
		m.flash = "Room id copied"
	}
	return m, flashCmd()
}

func isRoomIDChar(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z')
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.ctrl.Status()
	key := msg.String()

	if m.confirmQuit {
		switch key {
		case "y", "Y":
			m.quitting = true
			return m, tea.Quit
		default:
			m.confirmQuit = false
			return m, nil
		}
	}

	switch key {
	case "ctrl+c", "q", "esc":
		if m.ctrl.HasActiveConnection() {
			m.confirmQuit = true
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	case "ctrl+r":
		// Rescan local displays after plugging a monitor in or out.
		m.ctrl.NotifyScreensChanged()
		return m, nil
	case "C":
		return m.copyRoomID(st.LocalRoom)
	case "c":
		// Lowercase only works while the id input field is not
		// active, where 'c' is part of the alphabet.
		if st.State != session.Disconnected {
			return m.copyRoomID(st.LocalRoom)
		}
	}

	// An open consent prompt owns a/d.
	if st.Pending != nil {
		switch key {
		case "a":
			m.ctrl.Accept()
			return m, nil
		case "d":
			m.ctrl.Deny()
			return m, nil
		}
	}

	switch st.State {
	case session.Connected:
		switch key {
		case "s":
			m.ctrl.Disconnect()
			return m, nil
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			idx := int(key[0] - '1')
			if idx < len(st.Screens) {
				m.ctrl.SelectScreen(st.Screens[idx])
			}
			return m, nil
		}

	case session.Failed:
		switch key {
		case "r":
			m.ctrl.Retry()
			return m, nil
		case "s":
			m.ctrl.Disconnect()
			return m, nil
		}

	case session.Disconnected:
		switch key {
		case "enter":
			if signal.ValidRoomID(m.typed) {
				m.ctrl.ConnectTo(m.typed)
				m.typed = ""
			} else {
				m.flash = fmt.Sprintf("A room id is %d characters (0-9, a-z)", signal.RoomIDLength)
				return m, flashCmd()
			}
			return m, nil
		case "backspace":
			if len(m.typed) > 0 {
				m.typed = m.typed[:len(m.typed)-1]
			}
			return m, nil
		}
		if len(msg.Runes) == 1 && isRoomIDChar(msg.Runes[0]) && len(m.typed) < signal.RoomIDLength {
			m.typed += string(msg.Runes)
			return m, nil
		}
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	st := m.ctrl.Status()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Remote-Desk"))
	b.WriteString("\n\n")

	b.WriteString(normalStyle.Render("Your PC id: "))
	b.WriteString(urlStyle.Render(st.LocalRoom))
	b.WriteString(dimStyle.Render("   (C to copy)"))
	b.WriteString("\n")

	if st.Online {
		b.WriteString(statusStyle.Render("● connected to server"))
	} else {
		b.WriteString(errorStyle.Render("○ offline, retrying"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderSession(st))

	if st.Pending != nil {
		name := st.Pending.HostName
		if name == "" {
			name = "A remote PC"
		}
		prompt := fmt.Sprintf("%s wants to view your screen\n[a]ccept   [d]eny", name)
		b.WriteString("\n")
		b.WriteString(promptBoxStyle.Render(prompt))
		b.WriteString("\n")
	}

	if m.confirmQuit {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("A session is active. Really quit? [y/n]"))
		b.WriteString("\n")
	}

	if m.flash != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.flash))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.helpLine(st)))
	b.WriteString("\n")

	return b.String()
}

func (m model) renderSession(st session.Status) string {
	var b strings.Builder

	switch st.State {
	case session.Disconnected:
		b.WriteString(normalStyle.Render("Connect to remote PC: "))
		b.WriteString(selectedStyle.Render(m.typed + "_"))
		b.WriteString("\n")
		if st.Err != "" {
			b.WriteString(errorStyle.Render(st.Err))
			b.WriteString("\n")
		}

	case session.Connecting:
		b.WriteString(statusStyle.Render("Connecting..."))
		b.WriteString("\n")

	case session.Connected:
		b.WriteString(selectedStyle.Render("Connected"))
		if st.Joined != "" {
			b.WriteString(normalStyle.Render(" to " + st.Joined))
		}
		b.WriteString("\n")
		if len(st.Screens) > 1 {
			b.WriteString(dimStyle.Render("Remote screens:"))
			b.WriteString("\n")
			for i, sc := range st.Screens {
				line := fmt.Sprintf("  [%d] %s", i+1, sc.Name)
				if sc.ID == st.Active {
					b.WriteString(selectedStyle.Render(line + " *"))
				} else {
					b.WriteString(normalStyle.Render(line))
				}
				b.WriteString("\n")
			}
		}

	case session.Failed:
		b.WriteString(errorStyle.Render("Connection failed"))
		b.WriteString("\n")
		if st.Err != "" {
			b.WriteString(dimStyle.Render(st.Err))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m model) helpLine(st session.Status) string {
	switch st.State {
	case session.Connected:
		return "1-9 switch screen • s disconnect • C copy id • q quit"
	case session.Failed:
		return "r retry • s disconnect • q quit"
	default:
		return "type a remote id + enter to connect • C copy id • q quit"
	}
}

// RunTUI wires the endpoint together and runs the interface until the
// user quits.
func RunTUI(config Config) error {
	// Write logs to file instead of corrupting the TUI display
	logFile, err := os.Create("remote-desk-debug.log")
	if err != nil {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(logFile)
		log.Printf("=== Remote-Desk started at %s ===", time.Now().Format(time.RFC3339))
		defer logFile.Close()
	}
	defer log.SetOutput(os.Stderr)

	loadSettings(&config)

	link := &signalLink{}
	factory := rtc.NewFactory(rtc.ICEConfig{
		TURNServer: config.TURNServer,
		TURNUser:   config.TURNUser,
		TURNPass:   config.TURNPass,
		ForceRelay: config.ForceRelay,
	}, nil)

	ctrl := session.NewController(
		session.Config{HostName: config.Name},
		link,
		factory,
		hostCatalog(),
		newHostInjector(),
	)
	ctrl.Start()

	done := make(chan struct{})
	go maintainLink(config.SignalURL, link, ctrl, done)

	p := tea.NewProgram(
		initialModel(config, ctrl),
		tea.WithAltScreen(),
	)
	ctrl.SetOnChange(func() {
		p.Send(statusChangedMsg{})
	})

	_, runErr := p.Run()

	close(done)
	ctrl.Stop()
	if c := link.current(); c != nil {
		c.Close()
	}
	return runErr
}
