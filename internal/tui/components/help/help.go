package help

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/ksdme/vortex/internal/tui/colors"
)

// Renders the bindings on a single line, skipping disabled ones and the
// ones without any help text.
func View(bindings []key.Binding, renderer *lipgloss.Renderer, colors colors.ColorPalette) string {
	keyStyle := renderer.
		NewStyle().
		Foreground(colors.Text).
		PaddingRight(1)

	descStyle := renderer.
		NewStyle().
		Foreground(colors.Muted).
		PaddingRight(3)

	items := []string{}
	for _, binding := range bindings {
		if !binding.Enabled() {
			continue
		}

		help := binding.Help()
		if len(help.Desc) == 0 || len(help.Key) == 0 {
			continue
		}

		items = append(
			items,
			lipgloss.JoinHorizontal(
				lipgloss.Left,
				keyStyle.Render(help.Key),
				descStyle.Render(help.Desc),
			),
		)
	}

	return renderer.
		NewStyle().
		MarginTop(1).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, items...))
}
