package home

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/ksdme/vortex/internal/poll"
	"github.com/ksdme/vortex/internal/render"
	"github.com/ksdme/vortex/internal/tui/colors"
	"github.com/ksdme/vortex/internal/tui/components/picker"
	"github.com/ksdme/vortex/internal/tui/email"
	"github.com/ksdme/vortex/internal/utils"
)

// Actions the home view asks the top model to perform.
type (
	CopyAddressMsg     struct{}
	GenerateAddressMsg struct{}
	EditAddressMsg     struct{}
	ClearInboxMsg      struct{}
	RefreshMsg         struct{}
)

type Model struct {
	address  address.Address
	snapshot poll.Snapshot
	previews map[string]render.Rendered

	messages picker.Model
	spinner  spinner.Model

	// A short lived note shown next to the address, like "copied".
	notice string

	Width  int
	Height int

	KeyMap   KeyMap
	Renderer *lipgloss.Renderer
	Colors   colors.ColorPalette

	now func() time.Time
}

func NewModel(renderer *lipgloss.Renderer, colors colors.ColorPalette) Model {
	width := 80
	height := 24

	pStyles := picker.DefaultStyles(renderer)
	pStyles.Title = pStyles.Title.Foreground(colors.Muted).PaddingLeft(0)
	pStyles.Badge = pStyles.Badge.Foreground(colors.Muted)
	pStyles.Regular = pStyles.Regular.Foreground(colors.Text)
	pStyles.Highlighted = pStyles.Highlighted.Foreground(colors.Accent).Bold(true)
	pStyles.SelectedLegend = pStyles.SelectedLegend.Foreground(colors.Accent)
	messages := picker.NewModel("", []picker.Item{}, width, height, renderer)
	messages.Styles = pStyles
	messages.Focus()

	return Model{
		snapshot: poll.Snapshot{Messages: []inbox.Message{}},
		previews: map[string]render.Rendered{},

		messages: messages,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(renderer.NewStyle().Foreground(colors.Accent)),
		),

		Width:  width,
		Height: height,

		KeyMap:   DefaultKeyMap(),
		Renderer: renderer,
		Colors:   colors,

		now: time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Switches to a new address, the previous messages are dropped.
func (m *Model) SetAddress(a address.Address) {
	if m.address == a {
		return
	}

	m.address = a
	m.notice = ""
	m.snapshot = poll.Snapshot{Address: a, Messages: []inbox.Message{}}
	m.previews = map[string]render.Rendered{}
	m.messages.SetItems([]picker.Item{})
}

func (m Model) Address() address.Address {
	return m.address
}

func (m *Model) SetNotice(notice string) {
	m.notice = notice
}

func (m Model) Notice() string {
	return m.notice
}

// The rendered headers of the messages currently shown. The map is never
// written to after it is handed out.
func (m Model) Previews() map[string]render.Rendered {
	return m.previews
}

// Shows a snapshot. Previews carry the rendered headers of messages and are
// kept for as long as the message is on the snapshot.
func (m *Model) SetSnapshot(snapshot poll.Snapshot, previews map[string]render.Rendered) {
	if snapshot.Address != m.address {
		return
	}

	kept := map[string]render.Rendered{}
	for _, message := range snapshot.Messages {
		if preview, ok := previews[message.ID]; ok {
			kept[message.ID] = preview
		} else if preview, ok := m.previews[message.ID]; ok {
			kept[message.ID] = preview
		}
	}

	m.snapshot = snapshot
	m.previews = kept
	m.refreshItems()
}

func (m Model) Snapshot() poll.Snapshot {
	return m.snapshot
}

func (m *Model) refreshItems() {
	now := m.now()

	items := make([]picker.Item, 0, len(m.snapshot.Messages))
	for _, message := range m.snapshot.Messages {
		subject := render.NoSubject
		sender := message.Sender
		if preview, ok := m.previews[message.ID]; ok {
			subject = preview.Subject
			sender = preview.SenderDisplayName
		}
		if sender == "" {
			sender = render.UnknownSender
		}

		items = append(items, picker.Item{
			Key:   message.ID,
			Label: fmt.Sprintf("%s · %s", sender, subject),
			Value: message,
			Badge: utils.Ago(message.ReceivedAt, now),
		})
	}

	m.messages.SetItems(items)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.messages.Width = m.Width
		m.messages.Height = max(m.Height-4, 1)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.KeyMap.Copy):
			return m, emit(CopyAddressMsg{})

		case key.Matches(msg, m.KeyMap.Generate):
			return m, emit(GenerateAddressMsg{})

		case key.Matches(msg, m.KeyMap.Edit):
			return m, emit(EditAddressMsg{})

		case key.Matches(msg, m.KeyMap.Clear):
			if m.messages.HasItems() {
				return m, emit(ClearInboxMsg{})
			}
			return m, nil

		case key.Matches(msg, m.KeyMap.Refresh):
			// Ages are relative to now.
			m.refreshItems()
			return m, emit(RefreshMsg{})

		case key.Matches(msg, m.KeyMap.Select):
			if item := m.messages.HighlightedItem(); item != nil {
				message := item.Value.(inbox.Message)
				return m, emit(email.MailSelectedMsg{
					To:       m.address,
					Message:  message,
					Rendered: m.previews[message.ID],
				})
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.messages, cmd = m.messages.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Top,
		m.header(),
		m.status(),
		m.body(),
	)
}

func (m Model) header() string {
	label := m.Renderer.
		NewStyle().
		Foreground(m.Colors.Muted).
		PaddingRight(1).
		Render("Your address")

	value := "…"
	if !m.address.IsZero() {
		value = m.address.String()
	}
	value = m.Renderer.
		NewStyle().
		Foreground(m.Colors.Accent).
		Bold(true).
		Render(value)

	parts := []string{label, value}
	if m.notice != "" {
		parts = append(parts, m.Renderer.
			NewStyle().
			Foreground(m.Colors.Muted).
			PaddingLeft(2).
			Render(m.notice),
		)
	}

	return m.Renderer.
		NewStyle().
		Height(2).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, parts...))
}

// The retrieval error banner. Errors do not clear the messages, the next
// poll retries on its own.
func (m Model) status() string {
	if m.snapshot.Err == nil {
		return ""
	}

	text := "could not check for new emails, retrying"
	var retrieval *inbox.RetrievalError
	if errors.As(m.snapshot.Err, &retrieval) && retrieval.StatusCode != 0 {
		text = fmt.Sprintf("%s (status %d)", text, retrieval.StatusCode)
	}

	return m.Renderer.
		NewStyle().
		Foreground(m.Colors.Error).
		Height(2).
		Render(text)
}

func (m Model) body() string {
	box := utils.Box(m.Renderer, m.Width, m.messages.Height, true, true)

	if !m.snapshot.Loaded && m.snapshot.Err == nil && !m.messages.HasItems() {
		return box.
			Foreground(m.Colors.Muted).
			Render(m.spinner.View() + " Checking for emails")
	}

	if !m.messages.HasItems() {
		return box.
			Foreground(m.Colors.Muted).
			Render(m.spinner.View() + " Waiting for emails")
	}

	return m.messages.View()
}

func (m Model) Help() []key.Binding {
	bindings := []key.Binding{
		m.KeyMap.Copy,
		m.KeyMap.Generate,
		m.KeyMap.Edit,
	}

	if m.messages.HasItems() {
		bindings = append(bindings, m.KeyMap.Select, m.KeyMap.Clear)
	}

	return bindings
}

type KeyMap struct {
	Copy     key.Binding
	Generate key.Binding
	Edit     key.Binding
	Clear    key.Binding
	Refresh  key.Binding

	Select key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy address"),
		),
		Generate: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new address"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit address"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("ctrl+k", "clear inbox"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),

		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "read"),
		),
	}
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return msg
	}
}
