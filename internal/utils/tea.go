package utils

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/muesli/termenv"
)

// Run a bubble tea program on the session. The model is built with a
// renderer bound to the session, so styles follow the remote terminal.
func RunTeaInSession(next ssh.Handler, session ssh.Session, build func(renderer *lipgloss.Renderer) tea.Model) {
	middleware := bubbletea.MiddlewareWithColorProfile(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		model := build(bubbletea.MakeRenderer(s))
		return model, []tea.ProgramOption{tea.WithAltScreen()}
	}, termenv.ANSI256)

	middleware(next)(session)
}
