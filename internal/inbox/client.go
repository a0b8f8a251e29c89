package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ksdme/vortex/internal/address"
	"github.com/pkg/errors"
)

// Name of the cookie, and of the json field, the backend uses to hand out
// the verification credential.
const CredentialName = "api_token"

// Responses larger than this are refused instead of being buffered.
const maxResponseSize = 32 << 20

var ErrVerificationRejected = errors.New("verification rejected")

type CredentialKind string

const (
	BearerCredential CredentialKind = "bearer"
	CookieCredential CredentialKind = "cookie"
)

// An opaque credential proving that the client passed bot verification. Its
// scope and expiry are entirely up to the backend.
type Credential struct {
	Kind  CredentialKind `json:"kind"`
	Token string         `json:"token"`
}

func (c Credential) IsZero() bool {
	return c.Token == ""
}

// Returned when listing messages fails for any reason other than the
// client not being verified yet.
type RetrievalError struct {
	// Zero if the request never got a response.
	StatusCode int
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("could not retrieve messages: status %d", e.StatusCode)
	}
	return fmt.Sprintf("could not retrieve messages: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// A thin client for the mail retrieval api.
type Client struct {
	base string
	http *http.Client

	lock       sync.RWMutex
	credential Credential
}

type Option func(*Client)

// Use a custom http client, mostly useful in tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// Creates a client for the api at base. Every request is bounded by the
// timeout so that slow networks cannot build up a backlog of polls.
func NewClient(base string, timeout time.Duration, options ...Option) *Client {
	client := &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
	for _, option := range options {
		option(client)
	}
	return client
}

func (c *Client) SetCredential(credential Credential) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.credential = credential
}

func (c *Client) Credential() Credential {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.credential
}

// Fetch lists the messages on an address, newest first. A 401 or 403 means
// the client is not verified yet and results in an empty list rather than
// an error.
func (c *Client) Fetch(ctx context.Context, a address.Address) ([]Message, error) {
	if a.IsZero() {
		return nil, errors.New("cannot fetch messages without an address")
	}

	request, err := c.newRequest(ctx, http.MethodGet, "/emails/"+url.PathEscape(a.String()), nil)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	response, err := c.http.Do(request)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusUnauthorized, response.StatusCode == http.StatusForbidden:
		slog.Debug("not verified, treating inbox as empty", "address", a, "status", response.StatusCode)
		drain(response.Body)
		return []Message{}, nil

	case response.StatusCode < 200 || response.StatusCode > 299:
		drain(response.Body)
		return nil, &RetrievalError{StatusCode: response.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, &RetrievalError{Err: errors.Wrap(err, "could not read response")}
	}

	messages, err := decodeMessages(body)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	SortNewestFirst(messages)
	return messages, nil
}

// Clear deletes every message on the address. Callers are expected to
// empty their local view right away instead of waiting on this.
func (c *Client) Clear(ctx context.Context, a address.Address) error {
	if a.IsZero() {
		return errors.New("cannot clear messages without an address")
	}

	request, err := c.newRequest(ctx, http.MethodDelete, "/emails/"+url.PathEscape(a.String())+"/clear", nil)
	if err != nil {
		return err
	}

	response, err := c.http.Do(request)
	if err != nil {
		return errors.Wrap(err, "could not clear messages")
	}
	defer response.Body.Close()
	drain(response.Body)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return errors.Errorf("could not clear messages: status %d", response.StatusCode)
	}
	return nil
}

// Verify exchanges a bot verification token for a credential. Depending on
// the deployment the backend either sets a cookie or returns the token in
// the body, both are supported. The credential is also installed on the
// client.
func (c *Client) Verify(ctx context.Context, token string) (Credential, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return Credential{}, errors.Wrap(err, "could not encode token")
	}

	request, err := c.newRequest(ctx, http.MethodPost, "/verify-turnstile", bytes.NewReader(body))
	if err != nil {
		return Credential{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return Credential{}, errors.Wrap(err, "could not reach verification endpoint")
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		drain(response.Body)
		return Credential{}, errors.Wrap(
			ErrVerificationRejected,
			fmt.Sprintf("status %d", response.StatusCode),
		)
	}

	var credential Credential
	for _, cookie := range response.Cookies() {
		if cookie.Name == CredentialName && cookie.Value != "" {
			credential = Credential{Kind: CookieCredential, Token: cookie.Value}
		}
	}

	// A token in the body takes precedence over the cookie.
	var payload struct {
		APIToken string `json:"api_token"`
	}
	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err == nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			slog.Debug("verification response is not json", "err", err)
		}
	}
	if payload.APIToken != "" {
		credential = Credential{Kind: BearerCredential, Token: payload.APIToken}
	}

	if credential.IsZero() {
		return Credential{}, errors.Wrap(ErrVerificationRejected, "no credential in response")
	}

	c.SetCredential(credential)
	return credential, nil
}

func (c *Client) newRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}

	request.Header.Set("Accept", "application/json")
	request.Header.Set("X-Request-Id", uuid.NewString())

	credential := c.Credential()
	switch credential.Kind {
	case BearerCredential:
		request.Header.Set("Authorization", "Bearer "+credential.Token)
	case CookieCredential:
		request.AddCookie(&http.Cookie{Name: CredentialName, Value: credential.Token})
	}

	return request, nil
}

// Lets the transport reuse the connection.
func drain(body io.Reader) {
	io.Copy(io.Discard, io.LimitReader(body, maxResponseSize))
}
