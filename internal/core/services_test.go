package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/config"
	"github.com/ksdme/vortex/internal/gate"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/ksdme/vortex/internal/poll"
	"github.com/ksdme/vortex/internal/store/boltstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServices(t *testing.T, siteKey string, handler http.HandlerFunc) *Services {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := boltstore.Open(filepath.Join(t.TempDir(), "vortex.db"))
	require.NoError(t, err)

	services, err := NewServices(config.Settings{
		APIEndpoint:      server.URL,
		RequestTimeout:   time.Second,
		EmailDomains:     []string{"example.com", "example.org"},
		TurnstileSiteKey: siteKey,
		PollInterval:     time.Second,
		ImageProxy:       "https://wsrv.nl/?url=",
	}, s)
	require.NoError(t, err)
	t.Cleanup(func() { services.Close() })

	return services
}

func TestNewServices_NoDomains(t *testing.T) {
	_, err := NewServices(config.Settings{}, nil)
	assert.ErrorIs(t, err, address.ErrNoDomains)
}

func TestStart_GeneratesAndKeepsAddress(t *testing.T) {
	services := newTestServices(t, "", nil)
	ctx := context.Background()

	first, err := services.Start(ctx)
	require.NoError(t, err)
	assert.True(t, services.Generator.Allowed(first))

	second, err := services.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureAddress_ReplacesForbiddenAddress(t *testing.T) {
	services := newTestServices(t, "", nil)
	ctx := context.Background()

	require.NoError(t, services.Store.Save(ctx, "alice@removed.example"))

	a, err := services.EnsureAddress(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, address.Address("alice@removed.example"), a)
	assert.True(t, services.Generator.Allowed(a))
}

func TestReplace(t *testing.T) {
	services := newTestServices(t, "", nil)
	ctx := context.Background()

	a, err := services.Replace(ctx, "bob@example.org")
	require.NoError(t, err)
	assert.Equal(t, address.Address("bob@example.org"), a)

	_, err = services.Replace(ctx, "bob@elsewhere.example")
	assert.ErrorIs(t, err, address.ErrInvalidAddress)

	stored, _, err := services.Store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, address.Address("bob@example.org"), stored)
}

func TestStart_VerificationDisabled(t *testing.T) {
	services := newTestServices(t, "", nil)

	_, err := services.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gate.Granted, services.Gate.State())

	scheduler := services.NewScheduler()
	scheduler.SetAddress("alice@example.com")
	assert.Equal(t, poll.Polling, scheduler.State())
}

func TestStart_RestoresCredential(t *testing.T) {
	var authorization string
	services := newTestServices(t, "site-key", func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})
	ctx := context.Background()

	require.NoError(t, services.Store.SaveCredential(ctx, inbox.Credential{
		Kind:  inbox.BearerCredential,
		Token: "earlier",
	}))

	a, err := services.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, gate.Granted, services.Gate.State())

	_, err = services.Client.Fetch(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "Bearer earlier", authorization)
}

func TestStart_SuspendsUntilVerified(t *testing.T) {
	services := newTestServices(t, "site-key", nil)

	_, err := services.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gate.Unverified, services.Gate.State())

	scheduler := services.NewScheduler()
	scheduler.SetAddress("alice@example.com")
	assert.Equal(t, poll.Suspended, scheduler.State())
}
