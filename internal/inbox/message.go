package inbox

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/mail"
	"slices"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// A single received email.
type Message struct {
	// Opaque identifier assigned by the backend. When the backend does not
	// send one, it is derived from the payload and the receipt time.
	ID string

	Sender     string
	Recipients []string

	// The undecoded MIME document.
	RawPayload []byte

	ReceivedAt time.Time

	// Position in the backend response. The backend appends in arrival
	// order, so a later position means a newer message.
	arrival int
}

// Sorts messages newest first. The backend makes no ordering promises so
// this needs to run on every fetch. Messages received at the same time, or
// without a known time, keep the order they arrived in.
func SortNewestFirst(messages []Message) {
	slices.SortStableFunc(messages, func(a, b Message) int {
		if c := b.ReceivedAt.Compare(a.ReceivedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(b.arrival, a.arrival); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// The backend has shipped a few different shapes over time. Some versions
// return flat message objects, others wrap them as {email, timestamp}. The
// raw payload may be a string or a byte array. All of it is normalized here
// so that nothing past this point has to care.
var (
	idKeys        = []string{"id", "ID", "_id"}
	senderKeys    = []string{"mail_from", "sender", "from"}
	recipientKeys = []string{"rcpt_to", "recipients", "to"}
	payloadKeys   = []string{"data", "raw", "rawPayload", "raw_payload"}
	timestampKeys = []string{"timestamp", "receivedAt", "received_at", "date"}
)

type object map[string]json.RawMessage

func (o object) first(keys []string) (json.RawMessage, bool) {
	for _, key := range keys {
		if value, ok := o[key]; ok && !isNull(value) {
			return value, true
		}
	}
	return nil, false
}

func decodeMessages(body []byte) ([]Message, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || isNull(body) {
		return []Message{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrap(err, "expected a list of messages")
	}

	messages := make([]Message, 0, len(items))
	for index, item := range items {
		message, err := decodeMessage(item)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("could not decode message %d", index))
		}
		message.arrival = index
		messages = append(messages, message)
	}

	return messages, nil
}

func decodeMessage(item json.RawMessage) (Message, error) {
	var outer object
	if err := json.Unmarshal(item, &outer); err != nil {
		return Message{}, errors.Wrap(err, "expected a message object")
	}

	// Unwrap {email: {...}, timestamp}. Fields on the inner object win,
	// the outer object is only used as a fallback.
	fields := outer
	if raw, ok := outer["email"]; ok && isObject(raw) {
		var inner object
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Message{}, errors.Wrap(err, "could not unwrap email")
		}
		for key, value := range outer {
			if _, exists := inner[key]; !exists && key != "email" {
				inner[key] = value
			}
		}
		fields = inner
	}

	var message Message
	var err error

	if raw, ok := fields.first(idKeys); ok {
		if message.ID, err = decodeScalar(raw); err != nil {
			return Message{}, errors.Wrap(err, "invalid id")
		}
	}

	if raw, ok := fields.first(senderKeys); ok {
		if message.Sender, err = decodeScalar(raw); err != nil {
			return Message{}, errors.Wrap(err, "invalid sender")
		}
	}

	if raw, ok := fields.first(recipientKeys); ok {
		if message.Recipients, err = decodeStrings(raw); err != nil {
			return Message{}, errors.Wrap(err, "invalid recipients")
		}
	}

	if raw, ok := fields.first(payloadKeys); ok {
		if message.RawPayload, err = decodePayload(raw); err != nil {
			return Message{}, errors.Wrap(err, "invalid payload")
		}
	}

	if raw, ok := fields.first(timestampKeys); ok {
		if message.ReceivedAt, err = decodeTime(raw); err != nil {
			return Message{}, errors.Wrap(err, "invalid timestamp")
		}
	}

	// Some backends send no receipt time at all, the Date header of the
	// message is the next best thing.
	if message.ReceivedAt.IsZero() {
		if date, ok := headerDate(message.RawPayload); ok {
			message.ReceivedAt = date
		}
	}

	if message.ID == "" {
		message.ID = deriveID(message)
	}

	return message, nil
}

func headerDate(payload []byte) (time.Time, bool) {
	if len(payload) == 0 {
		return time.Time{}, false
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(payload))
	if err != nil {
		return time.Time{}, false
	}

	date, err := parsed.Header.Date()
	if err != nil {
		return time.Time{}, false
	}
	return date.UTC(), true
}

func decodeScalar(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", err
	}
	return number.String(), nil
}

func decodeStrings(raw json.RawMessage) ([]string, error) {
	var values []string
	if err := json.Unmarshal(raw, &values); err == nil {
		return values, nil
	}

	value, err := decodeScalar(raw)
	if err != nil {
		return nil, err
	}
	return []string{value}, nil
}

// A payload is either a string, or, a byte array the way some serializers
// encode raw bytes.
func decodePayload(raw json.RawMessage) ([]byte, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []byte(text), nil
	}

	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}

	payload := make([]byte, len(values))
	for index, value := range values {
		if value < 0 || value > 255 {
			return nil, errors.Errorf("byte out of range: %d", value)
		}
		payload[index] = byte(value)
	}
	return payload, nil
}

// Timestamps are either RFC 3339 strings or unix timestamps in seconds or
// milliseconds.
func decodeTime(raw json.RawMessage) (time.Time, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if parsed, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return parsed, nil
		}
		if parsed, err := time.Parse(time.RFC1123Z, text); err == nil {
			return parsed, nil
		}
		if seconds, err := strconv.ParseFloat(text, 64); err == nil {
			return fromUnix(seconds), nil
		}
		return time.Time{}, errors.Errorf("unknown time format: %s", text)
	}

	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		return time.Time{}, err
	}
	return fromUnix(seconds), nil
}

func fromUnix(value float64) time.Time {
	// Anything this large can only be milliseconds.
	if value > 1e12 {
		return time.UnixMilli(int64(value)).UTC()
	}
	return time.Unix(int64(value), 0).UTC()
}

func deriveID(message Message) string {
	hash := sha256.New()
	hash.Write(message.RawPayload)
	hash.Write([]byte(message.ReceivedAt.UTC().Format(time.RFC3339Nano)))
	hash.Write([]byte(message.Sender))
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
