package edit

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/tui/colors"
	"github.com/ksdme/vortex/internal/tui/components/picker"
)

// Asks the top model to switch to the chosen address.
type SubmittedMsg struct {
	Local  string
	Domain string
}

type DismissMsg struct{}

// Lets the user choose their own name on one of the permitted domains.
type Model struct {
	input   textinput.Model
	domains picker.Model
	err     error

	Width  int
	Height int

	KeyMap   KeyMap
	Renderer *lipgloss.Renderer
	Colors   colors.ColorPalette
}

func NewModel(domains []string, renderer *lipgloss.Renderer, colors colors.ColorPalette) Model {
	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "username"
	input.CharLimit = 64
	input.TextStyle = renderer.NewStyle().Foreground(colors.Text)
	input.PlaceholderStyle = renderer.NewStyle().Foreground(colors.Muted)

	var items []picker.Item
	for _, domain := range domains {
		items = append(items, picker.Item{Key: domain, Label: "@" + domain, Value: domain})
	}

	pStyles := picker.DefaultStyles(renderer)
	pStyles.Title = pStyles.Title.Foreground(colors.Muted).PaddingLeft(0)
	pStyles.Regular = pStyles.Regular.Foreground(colors.Text)
	pStyles.Highlighted = pStyles.Highlighted.Foreground(colors.Accent).Bold(true)
	pStyles.SelectedLegend = pStyles.SelectedLegend.Foreground(colors.Accent)
	list := picker.NewModel("Domain", items, 40, min(len(items)+2, 10), renderer)
	list.Styles = pStyles

	return Model{
		input:   input,
		domains: list,

		KeyMap:   DefaultKeyMap(),
		Renderer: renderer,
		Colors:   colors,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Prefills the form with an address and focuses the name.
func (m *Model) Reset(a address.Address) tea.Cmd {
	m.err = nil
	m.input.SetValue(a.Local())
	m.input.CursorEnd()
	m.domains.Highlight(a.Domain())
	m.domains.Blur()
	return m.input.Focus()
}

func (m *Model) SetError(err error) {
	m.err = err
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.input.Width = max(m.Width-4, 10)
		m.domains.Width = min(max(m.Width, 20), 60)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.KeyMap.Dismiss):
			return m, func() tea.Msg { return DismissMsg{} }

		case key.Matches(msg, m.KeyMap.Switch):
			if m.input.Focused() {
				m.input.Blur()
				m.domains.Focus()
				return m, nil
			}
			m.domains.Blur()
			return m, m.input.Focus()

		case key.Matches(msg, m.KeyMap.Submit):
			submitted := SubmittedMsg{Local: m.input.Value()}
			if item := m.domains.HighlightedItem(); item != nil {
				submitted.Domain = item.Value.(string)
			}
			m.err = nil
			return m, func() tea.Msg { return submitted }
		}
	}

	var cmd tea.Cmd
	if m.input.Focused() {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.domains, cmd = m.domains.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	label := m.Renderer.
		NewStyle().
		Foreground(m.Colors.Muted).
		Height(2)

	name := m.input.View()
	if m.input.Focused() {
		name = m.Renderer.NewStyle().Foreground(m.Colors.Accent).Render("› ") + name
	} else {
		name = "  " + name
	}

	var problem string
	if m.err != nil {
		problem = m.Renderer.
			NewStyle().
			Foreground(m.Colors.Error).
			MarginTop(1).
			Render(m.err.Error())
	}

	return lipgloss.JoinVertical(
		lipgloss.Top,
		label.Render("Username"),
		m.Renderer.NewStyle().MarginBottom(1).Render(name),
		m.domains.View(),
		problem,
	)
}

func (m Model) Help() []key.Binding {
	return []key.Binding{
		m.KeyMap.Submit,
		m.KeyMap.Switch,
		m.KeyMap.Dismiss,
	}
}

type KeyMap struct {
	Submit  key.Binding
	Switch  key.Binding
	Dismiss key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "save"),
		),
		Switch: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "name/domain"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}
