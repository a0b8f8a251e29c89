package inbox

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessages_FlatShape(t *testing.T) {
	body := `[{
		"id": "abc",
		"mail_from": "sender@example.net",
		"rcpt_to": ["alice@example.com"],
		"data": "Subject: hi\r\n\r\nhello",
		"timestamp": "2024-01-02T03:04:05Z"
	}]`

	messages, err := decodeMessages([]byte(body))
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, "abc", messages[0].ID)
	assert.Equal(t, "sender@example.net", messages[0].Sender)
	assert.Equal(t, []string{"alice@example.com"}, messages[0].Recipients)
	assert.Equal(t, "Subject: hi\r\n\r\nhello", string(messages[0].RawPayload))
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), messages[0].ReceivedAt)
}

func TestDecodeMessages_WrappedShape(t *testing.T) {
	body := `[{
		"email": {
			"id": "wrapped",
			"mail_from": "sender@example.net",
			"rcpt_to": ["alice@example.com", "bob@example.com"],
			"data": "raw"
		},
		"timestamp": "2024-01-01T00:00:00Z"
	}]`

	messages, err := decodeMessages([]byte(body))
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, "wrapped", messages[0].ID)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, messages[0].Recipients)
	assert.Equal(t, "raw", string(messages[0].RawPayload))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), messages[0].ReceivedAt)
}

func TestDecodeMessages_ByteArrayPayloadAndUnixTime(t *testing.T) {
	body := `[{"sender": "a@b.c", "recipients": "x@y.z", "data": [104, 105], "received_at": 1704067200}]`

	messages, err := decodeMessages([]byte(body))
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, "hi", string(messages[0].RawPayload))
	assert.Equal(t, []string{"x@y.z"}, messages[0].Recipients)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), messages[0].ReceivedAt)
	assert.Len(t, messages[0].ID, 16, "missing ids are derived")
}

func TestDecodeMessages_DerivedIDsAreStable(t *testing.T) {
	body := `[{"data": "one", "timestamp": "2024-01-01T00:00:00Z"}]`

	first, err := decodeMessages([]byte(body))
	require.NoError(t, err)
	second, err := decodeMessages([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestDecodeMessages_EmptyAndNull(t *testing.T) {
	for _, body := range []string{"", "null", "[]", "  "} {
		messages, err := decodeMessages([]byte(body))
		require.NoError(t, err, body)
		assert.Empty(t, messages, body)
	}
}

func TestDecodeMessages_Invalid(t *testing.T) {
	_, err := decodeMessages([]byte(`{"not": "a list"}`))
	assert.Error(t, err)

	_, err = decodeMessages([]byte(`[{"data": [300]}]`))
	assert.Error(t, err)

	_, err = decodeMessages([]byte(`[{"timestamp": "yesterday"}]`))
	assert.Error(t, err)
}

func TestSortNewestFirst(t *testing.T) {
	older := Message{ID: "1", ReceivedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := Message{ID: "2", ReceivedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}

	for _, messages := range [][]Message{{older, newer}, {newer, older}} {
		SortNewestFirst(messages)
		assert.Equal(t, "2", messages[0].ID)
		assert.Equal(t, "1", messages[1].ID)
	}
}

func TestDecodeMessages_DateHeaderWithoutTimestamp(t *testing.T) {
	// Flat messages without ids or receipt times, listed out of order.
	var items []string
	for _, day := range []int{3, 1, 5, 2, 4, 6} {
		items = append(items, fmt.Sprintf(
			`{"mail_from": "s@example.net", "rcpt_to": ["a@example.com"], "data": "Date: Mon, 0%d Jan 2024 10:00:00 +0000\r\nSubject: day %d\r\n\r\nbody"}`,
			day, day,
		))
	}

	messages, err := decodeMessages([]byte("[" + strings.Join(items, ",") + "]"))
	require.NoError(t, err)
	SortNewestFirst(messages)

	var days []int
	for _, message := range messages {
		days = append(days, message.ReceivedAt.Day())
	}
	assert.Equal(t, []int{6, 5, 4, 3, 2, 1}, days)
	assert.Equal(t, time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC), messages[0].ReceivedAt)
}

func TestDecodeMessages_NoTimeKeepsArrivalOrder(t *testing.T) {
	body := `[
		{"mail_from": "s@example.net", "data": "Subject: first\r\n\r\none"},
		{"mail_from": "s@example.net", "data": "Subject: second\r\n\r\ntwo"},
		{"mail_from": "s@example.net", "data": "Subject: third\r\n\r\nthree"}
	]`

	messages, err := decodeMessages([]byte(body))
	require.NoError(t, err)
	SortNewestFirst(messages)

	var payloads []string
	for _, message := range messages {
		assert.True(t, message.ReceivedAt.IsZero())
		payloads = append(payloads, string(message.RawPayload))
	}
	assert.Equal(t, []string{
		"Subject: third\r\n\r\nthree",
		"Subject: second\r\n\r\ntwo",
		"Subject: first\r\n\r\none",
	}, payloads)
}
