package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/ksdme/vortex/internal/render"
	"github.com/ksdme/vortex/internal/tui/colors"
	"github.com/ksdme/vortex/internal/utils"
)

type MailSelectedMsg struct {
	To       address.Address
	Message  inbox.Message
	Rendered render.Rendered
}

type MailDismissMsg struct{}

type Model struct {
	viewport viewport.Model
	selected *MailSelectedMsg

	Width  int
	Height int

	KeyMap   KeyMap
	Renderer *lipgloss.Renderer
	Colors   colors.ColorPalette
}

func NewModel(renderer *lipgloss.Renderer, colors colors.ColorPalette) Model {
	width := 64
	height := 64

	return Model{
		viewport: viewport.New(width, height),

		Width:  width,
		Height: height,

		KeyMap:   DefaultKeyMap(),
		Renderer: renderer,
		Colors:   colors,
	}
}

func (m Model) Init() tea.Cmd {
	return m.viewport.Init()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = m.Width
		m.viewport.Height = m.Height
		if m.selected != nil {
			m.viewport.SetContent(m.makeContent(*m.selected))
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.KeyMap.Dismiss):
			return m, m.dismiss
		}

	case MailSelectedMsg:
		m.selected = &msg
		m.viewport.SetContent(m.makeContent(msg))
		m.viewport.SetYOffset(0)
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.viewport.View()
}

// The message currently shown, if any.
func (m Model) Selected() (inbox.Message, bool) {
	if m.selected == nil {
		return inbox.Message{}, false
	}
	return m.selected.Message, true
}

func (m Model) makeContent(selected MailSelectedMsg) string {
	labelStyle := m.Renderer.
		NewStyle().
		Foreground(m.Colors.Muted).
		Width(10)

	valueStyle := m.Renderer.
		NewStyle().
		Foreground(m.Colors.Text)

	rendered := selected.Rendered
	row := func(label string, value string) string {
		return lipgloss.JoinHorizontal(
			lipgloss.Left,
			labelStyle.Render(label),
			valueStyle.Render(value),
		)
	}

	from := rendered.SenderAddress
	if from == "" {
		from = selected.Message.Sender
	}
	if name := rendered.SenderDisplayName; name != "" && from != "" && name != address.Address(from).Local() {
		from = fmt.Sprintf("%s <%s>", name, from)
	}

	subject := rendered.Subject
	if subject == "" {
		subject = render.NoSubject
	}

	received := selected.Message.ReceivedAt
	if received.IsZero() {
		received = rendered.Date
	}

	// Fall back to the raw document if the message could not be rendered.
	text := rendered.TerminalText
	if text == "" && rendered.Subject == "" {
		text = string(selected.Message.RawPayload)
	}
	if strings.TrimSpace(text) == "" {
		text = "This message has no content."
	}

	body := valueStyle.
		Width(max(m.viewport.Width, 1)).
		MarginTop(1).
		Render(utils.Decode(text))

	return lipgloss.JoinVertical(
		lipgloss.Top,
		row("To", selected.To.String()),
		row("From", from),
		row("Subject", utils.Decode(subject)),
		row("Received", received.Local().Format(time.RFC822)),
		body,
	)
}

func (m Model) dismiss() tea.Msg {
	return MailDismissMsg{}
}

type KeyMap struct {
	Dismiss key.Binding
}

func (m Model) Help() []key.Binding {
	return []key.Binding{
		m.KeyMap.Dismiss,
	}
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Dismiss: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "go back"),
		),
	}
}
