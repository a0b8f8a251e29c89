package colors

import "github.com/charmbracelet/lipgloss"

type ColorPalette struct {
	Accent lipgloss.Color
	Muted  lipgloss.Color
	Text   lipgloss.Color
	Error  lipgloss.Color
}

func DefaultColorDarkPalette() ColorPalette {
	return ColorPalette{
		Accent: lipgloss.Color("9"),
		Muted:  lipgloss.Color("8"),
		Text:   lipgloss.Color("15"),
		Error:  lipgloss.Color("1"),
	}
}

func DefaultLightColorPalette() ColorPalette {
	return ColorPalette{
		Accent: lipgloss.Color("9"),
		Muted:  lipgloss.Color("8"),
		Text:   lipgloss.Color("0"),
		Error:  lipgloss.Color("1"),
	}
}

// Picks a palette that fits the background of the terminal the renderer
// writes to.
func ForRenderer(renderer *lipgloss.Renderer) ColorPalette {
	if renderer.HasDarkBackground() {
		return DefaultColorDarkPalette()
	}
	return DefaultLightColorPalette()
}
