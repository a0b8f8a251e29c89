package picker

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// A picker is a component that can be used to show a list of
// values and have the user pick from them.
type Model struct {
	title string
	items []Item

	highlighted int
	focused     bool

	Width  int
	Height int
	Styles Styles
	KeyMap KeyMap
}

func NewModel(title string, items []Item, width int, height int, renderer *lipgloss.Renderer) Model {
	return Model{
		title: title,
		items: items,

		Width:  width,
		Height: height,
		Styles: DefaultStyles(renderer),
		KeyMap: DefaultKeyMap(),
	}
}

// Handle the focused-ness of the component.
func (m *Model) Focus() {
	m.focused = true
}

func (m *Model) Blur() {
	m.focused = false
}

func (m Model) IsFocused() bool {
	return m.focused
}

// Replaces the items. The highlight follows the previously highlighted item
// if it is still present.
func (m *Model) SetItems(items []Item) {
	var current string
	if item := m.HighlightedItem(); item != nil {
		current = item.Key
	}

	m.items = items
	m.highlighted = 0
	for index, item := range items {
		if current != "" && item.Key == current {
			m.highlighted = index
			break
		}
	}
}

func (m Model) Items() []Item {
	return m.items
}

func (m Model) HasItems() bool {
	return len(m.items) > 0
}

func (m Model) HighlightedItem() *Item {
	if m.highlighted >= 0 && m.highlighted < len(m.items) {
		return &m.items[m.highlighted]
	}
	return nil
}

// Highlights the item with the key, returns false if there is no such item.
func (m *Model) Highlight(key string) bool {
	for index, item := range m.items {
		if item.Key == key {
			m.highlighted = index
			return true
		}
	}
	return false
}

func (m Model) clampedIndex(index int) int {
	if index >= len(m.items) {
		index = len(m.items) - 1
	}

	if index < 0 {
		return 0
	}

	return index
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.IsFocused() && m.HasItems() {
			switch {
			case key.Matches(msg, m.KeyMap.GoToTop):
				m.highlighted = 0

			case key.Matches(msg, m.KeyMap.GoToLast):
				m.highlighted = len(m.items) - 1

			case key.Matches(msg, m.KeyMap.Up):
				m.highlighted = m.clampedIndex(m.highlighted - 1)

			case key.Matches(msg, m.KeyMap.Down):
				m.highlighted = m.clampedIndex(m.highlighted + 1)
			}
		}
	}

	return m, nil
}

func (m Model) View() string {
	lines := []string{}

	// Add a title to the widget.
	height := m.Height
	if m.title != "" {
		title := m.Styles.Title.Render(m.title)
		lines = append(lines, title)
		height -= lipgloss.Height(title)
	}
	height = max(height, 1)

	// Keep the highlighted line visible.
	offset := 0
	if m.highlighted > height-1 {
		offset = m.highlighted - height + 1
	}
	items := m.items[offset:min(len(m.items), offset+height)]

	// Render lines.
	for index, item := range items {
		index += offset

		legend := " "
		if index == m.highlighted && m.IsFocused() {
			legend = m.Styles.SelectedLegend.Render("┃")
		}

		badge := ""
		if len(item.Badge) != 0 {
			badge = m.Styles.Badge.Render(item.Badge)
		}

		// If the text overflows, trim it, add ellipsis.
		room := m.Width - 2 - lipgloss.Width(badge) - 1
		label := runewidth.Truncate(item.Label, max(room, 1), "…")

		if index == m.highlighted && m.IsFocused() {
			label = m.Styles.Highlighted.Render(label)
		} else {
			label = m.Styles.Regular.Render(label)
		}

		line := lipgloss.JoinHorizontal(lipgloss.Left, legend, " ", label)
		if badge != "" {
			space := max(m.Width-lipgloss.Width(line)-lipgloss.Width(badge), 1)
			line = lipgloss.JoinHorizontal(
				lipgloss.Bottom,
				line,
				m.Styles.Regular.Width(space).Render(),
				badge,
			)
		}

		lines = append(lines, line)
	}

	return m.Styles.Regular.
		Width(m.Width).
		Render(lipgloss.JoinVertical(lipgloss.Top, lines...))
}

type Styles struct {
	Title          lipgloss.Style
	Badge          lipgloss.Style
	Regular        lipgloss.Style
	SelectedLegend lipgloss.Style
	Highlighted    lipgloss.Style
}

func DefaultStyles(renderer *lipgloss.Renderer) Styles {
	return Styles{
		Title:          renderer.NewStyle().PaddingLeft(2).Height(2).Foreground(lipgloss.Color("244")),
		Badge:          renderer.NewStyle().Foreground(lipgloss.Color("244")),
		Regular:        renderer.NewStyle(),
		SelectedLegend: renderer.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		Highlighted:    renderer.NewStyle().Foreground(lipgloss.Color("212")),
	}
}

type KeyMap struct {
	GoToTop  key.Binding
	GoToLast key.Binding

	Up   key.Binding
	Down key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		GoToTop:  key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "first")),
		GoToLast: key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "last")),

		Up:   key.NewBinding(key.WithKeys("k", "up", "ctrl+p"), key.WithHelp("k", "up")),
		Down: key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
	}
}

// Represents an item in the picker list.
type Item struct {
	// Identifies the item across updates.
	Key   string
	Label string
	Value any
	Badge string
}
