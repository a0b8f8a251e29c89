package render

import (
	"bytes"
	"html"
	"net/mail"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"
	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
)

const (
	NoSubject     = "No subject"
	UnknownSender = "Unknown"
)

// A message made safe to display.
type Rendered struct {
	// Sanitized html in which every remote resource goes through the image
	// proxy. Messages without html get their text wrapped in a pre block.
	SafeMarkup        string
	PlainTextFallback string

	Subject           string
	SenderDisplayName string
	SenderAddress     string
	Date              time.Time

	// Text meant for a terminal.
	TerminalText string
}

type Renderer struct {
	policy *bluemonday.Policy
	proxy  string
}

// Creates a renderer that routes remote resources through the given image
// proxy prefix. An empty proxy drops remote resources altogether.
func NewRenderer(proxy string) *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	policy.AllowURLSchemes("cid")
	policy.AllowAttrs("background").OnElements("table", "td", "th")
	policy.AllowAttrs("poster").OnElements("video")
	policy.AllowAttrs("srcset").OnElements("img", "source")

	return &Renderer{
		policy: policy,
		proxy:  proxy,
	}
}

// Renders a raw MIME document.
func (r *Renderer) Render(payload []byte) (Rendered, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(payload))
	if err != nil {
		return Rendered{}, errors.Wrap(err, "could not parse message")
	}

	rendered := Rendered{
		Subject: strings.TrimSpace(envelope.GetHeader("Subject")),
	}
	if rendered.Subject == "" {
		rendered.Subject = NoSubject
	}

	if from, err := envelope.AddressList("From"); err == nil && len(from) > 0 {
		rendered.SenderDisplayName = strings.TrimSpace(from[0].Name)
		rendered.SenderAddress = strings.ToLower(from[0].Address)
	}

	if date, err := mail.ParseDate(envelope.GetHeader("Date")); err == nil {
		rendered.Date = date
	}

	rendered.PlainTextFallback = envelope.Text
	if strings.TrimSpace(envelope.HTML) == "" {
		rendered.SafeMarkup = "<pre>" + html.EscapeString(envelope.Text) + "</pre>"
		rendered.TerminalText = strings.TrimSpace(envelope.Text)
	} else {
		markup, err := r.Sanitize(envelope.HTML)
		if err != nil {
			return Rendered{}, err
		}
		rendered.SafeMarkup = markup

		text, err := html2text.FromString(markup, html2text.Options{PrettyTables: true})
		if err != nil {
			// The text part enmime derives from the html is good enough.
			text = envelope.Text
		}
		rendered.TerminalText = strings.TrimSpace(text)
	}

	rendered.SenderDisplayName = displayName(rendered.SenderDisplayName, rendered.SenderAddress)
	return rendered, nil
}

// Renders a message, falling back to its envelope for the sender.
func (r *Renderer) RenderMessage(message inbox.Message) (Rendered, error) {
	rendered, err := r.Render(message.RawPayload)
	if err != nil {
		return Rendered{}, err
	}

	if rendered.SenderAddress == "" && message.Sender != "" {
		rendered.SenderAddress = strings.ToLower(message.Sender)
		rendered.SenderDisplayName = displayName("", rendered.SenderAddress)
	}
	if rendered.Date.IsZero() {
		rendered.Date = message.ReceivedAt
	}

	return rendered, nil
}

// Sanitizes untrusted html and routes its remote resources through the
// image proxy.
func (r *Renderer) Sanitize(markup string) (string, error) {
	return r.rewrite(r.policy.Sanitize(markup))
}

func displayName(name string, sender string) string {
	if name != "" {
		return name
	}
	if local := address.Address(sender).Local(); local != "" {
		return local
	}
	return UnknownSender
}
