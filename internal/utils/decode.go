package utils

import "strings"

func Decode(text string) string {
	// Mail uses \r\n for line delimiting. Whereas bubbletea and SSH
	// seem to misbehave with this sometimes.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\t", "    ")
}
