package utils

import (
	"fmt"
	"io"
	"strings"
)

// Asks a yes or no question, anything other than yes or y is a no.
func AskConsent(w io.Writer, r io.Reader, prompt string) bool {
	fmt.Fprint(w, prompt)

	var consent string
	fmt.Fscanln(r, &consent)
	consent = strings.ToLower(consent)
	consent = strings.TrimSpace(consent)

	return consent == "yes" || consent == "y"
}
