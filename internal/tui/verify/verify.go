package verify

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ksdme/vortex/internal/gate"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/ksdme/vortex/internal/tui/colors"
)

// Asks the top model to exchange the token.
type SubmittedMsg struct {
	Token string
}

// The outcome of a submission.
type ResultMsg struct {
	State gate.State
	Err   error
}

type Model struct {
	input   textinput.Model
	spinner spinner.Model

	siteKey string
	state   gate.State
	err     error

	Width  int
	Height int

	KeyMap   KeyMap
	Renderer *lipgloss.Renderer
	Colors   colors.ColorPalette
}

func NewModel(siteKey string, renderer *lipgloss.Renderer, colors colors.ColorPalette) Model {
	input := textinput.New()
	input.Prompt = "› "
	input.Placeholder = "paste your verification token"
	input.PromptStyle = renderer.NewStyle().Foreground(colors.Accent)
	input.TextStyle = renderer.NewStyle().Foreground(colors.Text)
	input.PlaceholderStyle = renderer.NewStyle().Foreground(colors.Muted)
	input.Focus()

	return Model{
		input: input,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(renderer.NewStyle().Foreground(colors.Accent)),
		),

		siteKey: siteKey,
		state:   gate.Unverified,

		KeyMap:   DefaultKeyMap(),
		Renderer: renderer,
		Colors:   colors,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) State() gate.State {
	return m.state
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.input.Width = max(m.Width-4, 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ResultMsg:
		m.state = msg.State
		m.err = msg.Err
		if m.state == gate.Failed {
			m.input.SetValue("")
			return m, m.input.Focus()
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.KeyMap.Submit) {
			if m.state == gate.Pending || m.input.Value() == "" {
				return m, nil
			}

			m.state = gate.Pending
			m.err = nil
			m.input.Blur()

			token := m.input.Value()
			return m, func() tea.Msg {
				return SubmittedMsg{Token: token}
			}
		}
	}

	if m.state == gate.Pending {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	muted := m.Renderer.NewStyle().Foreground(m.Colors.Muted)

	title := m.Renderer.
		NewStyle().
		Foreground(m.Colors.Accent).
		Bold(true).
		MarginBottom(1).
		Render("Verification required")

	description := muted.
		Width(max(m.Width, 20)).
		MarginBottom(1).
		Render(fmt.Sprintf(
			"This inbox is protected against bots. Complete the challenge for site key %s in a browser and paste the token you get below.",
			m.siteKey,
		))

	var status string
	switch m.state {
	case gate.Pending:
		status = m.spinner.View() + muted.Render(" Verifying")

	case gate.Failed:
		text := "Verification failed, try again with a new token."
		if m.err != nil && !errors.Is(m.err, inbox.ErrVerificationRejected) {
			text = fmt.Sprintf("Could not verify: %v. Try again.", m.err)
		}
		status = m.Renderer.NewStyle().Foreground(m.Colors.Error).Render(text)
	}

	return lipgloss.JoinVertical(
		lipgloss.Top,
		title,
		description,
		m.input.View(),
		m.Renderer.NewStyle().MarginTop(1).Render(status),
	)
}

func (m Model) Help() []key.Binding {
	submit := m.KeyMap.Submit
	if m.state == gate.Failed {
		submit.SetHelp("enter", "retry")
	}
	return []key.Binding{submit}
}

type KeyMap struct {
	Submit key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "verify"),
		),
	}
}
