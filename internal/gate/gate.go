package gate

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ksdme/vortex/internal/inbox"
	"github.com/pkg/errors"
)

type State int

const (
	Unverified State = iota
	Pending
	Granted
	Failed
)

func (s State) String() string {
	switch s {
	case Unverified:
		return "unverified"
	case Pending:
		return "pending"
	case Granted:
		return "granted"
	case Failed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrEmptyToken = errors.New("verification token is empty")
	ErrInProgress = errors.New("verification is already in progress")
	ErrGranted    = errors.New("already verified")
)

type Verifier interface {
	Verify(ctx context.Context, token string) (inbox.Credential, error)
	SetCredential(credential inbox.Credential)
}

type CredentialStore interface {
	LoadCredential(ctx context.Context) (inbox.Credential, bool, error)
	SaveCredential(ctx context.Context, credential inbox.Credential) error
}

// Gate blocks fetching until a verification token has been exchanged for a
// credential. Granted is terminal, an expired credential is not detected.
type Gate struct {
	lock  sync.Mutex
	state State
	err   error

	enabled  bool
	verifier Verifier
	store    CredentialStore
}

// Creates a gate. A disabled gate is granted from the start.
func New(verifier Verifier, store CredentialStore, enabled bool) *Gate {
	state := Unverified
	if !enabled {
		state = Granted
	}

	return &Gate{
		state:    state,
		enabled:  enabled,
		verifier: verifier,
		store:    store,
	}
}

// Start looks for a credential from an earlier session and grants the gate
// right away if there is one.
func (g *Gate) Start(ctx context.Context) (State, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.state != Unverified {
		return g.state, nil
	}

	credential, ok, err := g.store.LoadCredential(ctx)
	if err != nil {
		return g.state, errors.Wrap(err, "could not load credential")
	}
	if ok {
		g.verifier.SetCredential(credential)
		g.state = Granted
	}

	return g.state, nil
}

// Moves the gate to pending. Only an unverified or failed gate can be.
func (g *Gate) Begin() error {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.begin()
}

func (g *Gate) begin() error {
	switch g.state {
	case Pending:
		return ErrInProgress
	case Granted:
		return ErrGranted
	}

	g.state = Pending
	g.err = nil
	return nil
}

// Submit exchanges a token for a credential. A failure leaves the gate in
// failed, from where it can be submitted again.
func (g *Gate) Submit(ctx context.Context, token string) (State, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return g.State(), ErrEmptyToken
	}

	g.lock.Lock()
	if err := g.begin(); err != nil {
		state := g.state
		g.lock.Unlock()
		return state, err
	}
	g.lock.Unlock()

	credential, err := g.verifier.Verify(ctx, token)

	g.lock.Lock()
	defer g.lock.Unlock()

	if err != nil {
		g.state = Failed
		g.err = err
		return g.state, err
	}

	g.state = Granted
	if err := g.store.SaveCredential(ctx, credential); err != nil {
		// The credential still works for this session.
		slog.Warn("could not save credential", "err", err)
	}

	return g.state, nil
}

func (g *Gate) State() State {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.state
}

// The error of the last failed verification.
func (g *Gate) Err() error {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.err
}

func (g *Gate) Enabled() bool {
	return g.enabled
}
