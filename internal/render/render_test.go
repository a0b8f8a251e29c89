package render

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ksdme/vortex/internal/inbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const proxy = "https://wsrv.nl/?url="

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func htmlMessage(body string) []byte {
	return crlf(
		"From: Alice Example <Alice@Example.com>",
		"To: bob@example.org",
		"Subject: Hello there",
		"Date: Tue, 02 Jan 2024 10:00:00 +0000",
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		body,
	)
}

func TestRender_HTML(t *testing.T) {
	rendered, err := NewRenderer(proxy).Render(htmlMessage(
		`<p>Hi <b>Bob</b></p><img src="https://tracker.example/pixel.gif?id=1&u=2"><script>alert(1)</script>`,
	))
	require.NoError(t, err)

	assert.Equal(t, "Hello there", rendered.Subject)
	assert.Equal(t, "Alice Example", rendered.SenderDisplayName)
	assert.Equal(t, "alice@example.com", rendered.SenderAddress)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), rendered.Date.UTC())

	assert.NotContains(t, rendered.SafeMarkup, "<script")
	assert.NotContains(t, rendered.SafeMarkup, `src="https://tracker.example`)
	assert.Contains(t, rendered.SafeMarkup, url.QueryEscape("https://tracker.example/pixel.gif?id=1&u=2"))
	assert.Contains(t, rendered.TerminalText, "Bob")
}

func TestRender_PlainTextFallback(t *testing.T) {
	rendered, err := NewRenderer(proxy).Render(crlf(
		"From: bob@example.org",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"1 < 2 & code",
	))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rendered.SafeMarkup, "<pre>1 &lt; 2 &amp; code"))
	assert.True(t, strings.HasSuffix(rendered.SafeMarkup, "</pre>"))
	assert.Equal(t, "1 < 2 & code", rendered.TerminalText)
	assert.Equal(t, "1 < 2 & code", strings.TrimSpace(rendered.PlainTextFallback))
}

func TestRender_Fallbacks(t *testing.T) {
	r := NewRenderer(proxy)

	rendered, err := r.Render(crlf(
		"From: bob@example.org",
		"",
		"body",
	))
	require.NoError(t, err)
	assert.Equal(t, NoSubject, rendered.Subject)
	assert.Equal(t, "bob", rendered.SenderDisplayName)

	rendered, err = r.Render(crlf(
		"Subject: anonymous",
		"",
		"body",
	))
	require.NoError(t, err)
	assert.Equal(t, UnknownSender, rendered.SenderDisplayName)
	assert.Empty(t, rendered.SenderAddress)
}

func TestRenderMessage_UsesEnvelope(t *testing.T) {
	receivedAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rendered, err := NewRenderer(proxy).RenderMessage(inbox.Message{
		ID:         "1",
		Sender:     "Carol@Example.com",
		RawPayload: crlf("Subject: hi", "", "body"),
		ReceivedAt: receivedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "carol@example.com", rendered.SenderAddress)
	assert.Equal(t, "carol", rendered.SenderDisplayName)
	assert.Equal(t, receivedAt, rendered.Date)
}

func TestProxy(t *testing.T) {
	r := NewRenderer(proxy)

	cases := []struct {
		value    string
		expected string
		ok       bool
	}{
		{"https://a.example/x.png", proxy + url.QueryEscape("https://a.example/x.png"), true},
		{"HTTP://a.example/x.png", proxy + url.QueryEscape("HTTP://a.example/x.png"), true},
		{"//a.example/x.png", proxy + url.QueryEscape("https://a.example/x.png"), true},
		{"data:image/png;base64,AAAA", "data:image/png;base64,AAAA", true},
		{"cid:logo@example", "cid:logo@example", true},
		{"javascript:alert(1)", "", false},
		{"/relative.png", "", false},
		{"ftp://a.example/x.png", "", false},
	}

	for _, c := range cases {
		value, ok := r.Proxy(c.value)
		assert.Equal(t, c.ok, ok, c.value)
		assert.Equal(t, c.expected, value, c.value)
	}
}

func TestProxy_WithoutProxyDropsRemoteResources(t *testing.T) {
	r := NewRenderer("")

	_, ok := r.Proxy("https://a.example/x.png")
	assert.False(t, ok)

	markup, err := r.Sanitize(`<img src="https://a.example/x.png" alt="x">`)
	require.NoError(t, err)
	assert.NotContains(t, markup, "a.example")
}

func TestSanitize_ResourceAttributes(t *testing.T) {
	r := NewRenderer(proxy)

	markup, err := r.Sanitize(
		`<table background="http://a.example/bg.png"><tr><td>x</td></tr></table>` +
			`<img srcset="https://a.example/1x.png 1x, /local.png 2x, //a.example/3x.png 3x">` +
			`<img src="cid:logo@example">`,
	)
	require.NoError(t, err)

	assert.NotContains(t, markup, `"http://a.example`)
	assert.Contains(t, markup, `background="`+proxy+url.QueryEscape("http://a.example/bg.png")+`"`)
	assert.Contains(t, markup, proxy+url.QueryEscape("https://a.example/1x.png")+" 1x")
	assert.Contains(t, markup, proxy+url.QueryEscape("https://a.example/3x.png")+" 3x")
	assert.NotContains(t, markup, "/local.png")
	assert.Contains(t, markup, `src="cid:logo@example"`)
}
