package store

import (
	"context"
	"strings"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/inbox"
)

// A durable slot holding the current address and the verification
// credential of one client.
type Store interface {
	// Returns the saved address and false if there is none.
	Load(ctx context.Context) (address.Address, bool, error)
	Save(ctx context.Context, a address.Address) error

	LoadCredential(ctx context.Context) (inbox.Credential, bool, error)
	SaveCredential(ctx context.Context, credential inbox.Credential) error

	// Blocks until the address in the slot is replaced and returns the new
	// address. The flag is true if the wait was aborted because the store
	// was closed.
	WaitForChange() (address.Address, bool)

	Close() error
}

// Normalize cleans up a stored address. Earlier versions of the client
// stored the address wrapped in quotes, those are stripped so that old
// state keeps working. Never write the quotes back.
func Normalize(raw string) address.Address {
	value := strings.TrimSpace(raw)
	for len(value) >= 2 && isQuote(value[0]) && value[len(value)-1] == value[0] {
		value = strings.TrimSpace(value[1 : len(value)-1])
	}

	// Quotes escaped when the wrapped value was encoded again, and any
	// stray ones left inside. Addresses never contain quotes.
	value = quotes.Replace(value)

	return address.Address(strings.ToLower(value))
}

var quotes = strings.NewReplacer(`\"`, "", `"`, "", `'`, "")

func isQuote(c byte) bool {
	return c == '"' || c == '\''
}
