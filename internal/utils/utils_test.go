package utils

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundedAge(t *testing.T) {
	cases := map[time.Duration]string{
		30 * time.Second:    "30 s",
		90 * time.Second:    "1 m",
		3 * time.Hour:       "3 h",
		50 * time.Hour:      "2 d",
		15 * 24 * time.Hour: "2 wks",
	}

	for duration, expected := range cases {
		assert.Equal(t, expected, RoundedAge(duration), duration.String())
	}
}

func TestAgo(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", Ago(now.Add(-time.Second), now))
	assert.Equal(t, "just now", Ago(now.Add(time.Minute), now))
	assert.Equal(t, "2 m ago", Ago(now.Add(-2*time.Minute), now))
	assert.Equal(t, "unknown", Ago(time.Time{}, now))
}

func TestParseArgs(t *testing.T) {
	var args struct {
		Name string `arg:"positional,required"`
	}

	var stdout, stderr bytes.Buffer
	retcode, consumed := ParseArgs(&stdout, &stderr, "vortex", []string{"bob"}, &args)
	assert.False(t, consumed)
	assert.Zero(t, retcode)
	assert.Equal(t, "bob", args.Name)

	retcode, consumed = ParseArgs(&stdout, &stderr, "vortex", []string{"--help"}, &args)
	assert.True(t, consumed)
	assert.Zero(t, retcode)
	assert.Contains(t, stdout.String(), "Usage: vortex")

	retcode, consumed = ParseArgs(&stdout, &stderr, "vortex", []string{}, &args)
	assert.True(t, consumed)
	assert.Equal(t, 255, retcode)
	assert.Contains(t, stderr.String(), "error:")
}

func TestAskConsent(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, AskConsent(&out, strings.NewReader("YES\n"), "sure? "))
	assert.True(t, AskConsent(&out, strings.NewReader("y\n"), "sure? "))
	assert.False(t, AskConsent(&out, strings.NewReader("nope\n"), "sure? "))
	assert.False(t, AskConsent(&out, strings.NewReader(""), "sure? "))
	assert.Equal(t, "sure? sure? sure? sure? ", out.String())
}

func TestDecode(t *testing.T) {
	assert.Equal(t, "a\nb\n    c", Decode("a\r\nb\r\n\tc"))
}
