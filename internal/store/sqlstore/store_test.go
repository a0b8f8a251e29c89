package sqlstore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"testing"
	"time"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/inbox"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/crypto/ssh"
)

func openTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func newPublicKey(t *testing.T) ssh.PublicKey {
	public, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	key, err := ssh.NewPublicKey(public)
	require.NoError(t, err)
	return key
}

func TestGetOrCreateAccountFromPublicKey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	key := newPublicKey(t)

	first, err := GetOrCreateAccountFromPublicKey(ctx, db, key)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, KeySignature(key), first.KeySignature)

	second, err := GetOrCreateAccountFromPublicKey(ctx, db, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := GetOrCreateAccountFromPublicKey(ctx, db, newPublicKey(t))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestStore_AddressAndCredential(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	account, err := GetOrCreateAccountFromPublicKey(ctx, db, newPublicKey(t))
	require.NoError(t, err)
	s := Open(db, *account)
	defer s.Close()

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "alice@example.com"))
	require.NoError(t, s.SaveCredential(ctx, inbox.Credential{Kind: inbox.BearerCredential, Token: "secret"}))
	require.NoError(t, s.Save(ctx, "bob@example.com"))

	a, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, address.Address("bob@example.com"), a)

	credential, ok, err := s.LoadCredential(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, inbox.Credential{Kind: inbox.BearerCredential, Token: "secret"}, credential)
}

func TestStore_StripsLegacyQuotes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	account, err := GetOrCreateAccountFromPublicKey(ctx, db, newPublicKey(t))
	require.NoError(t, err)

	_, err = db.NewInsert().Model(&Slot{
		AccountID: account.ID,
		Address:   `"alice@example.com"`,
		UpdatedAt: time.Now(),
	}).Exec(ctx)
	require.NoError(t, err)

	a, ok, err := Open(db, *account).Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, address.Address("alice@example.com"), a)
}

func TestStore_ChangesReachOtherSessions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	account, err := GetOrCreateAccountFromPublicKey(ctx, db, newPublicKey(t))
	require.NoError(t, err)

	writer := Open(db, *account)
	reader := Open(db, *account)
	defer writer.Close()
	defer reader.Close()

	changed := make(chan address.Address, 1)
	go func() {
		if a, aborted := reader.WaitForChange(); !aborted {
			changed <- a
		}
	}()

	require.Eventually(t, func() bool {
		return AddressChangedSignal.Waiting(account.ID) == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, writer.Save(ctx, "carol@example.com"))

	select {
	case a := <-changed:
		assert.Equal(t, address.Address("carol@example.com"), a)
	case <-time.After(time.Second):
		t.Fatal("did not receive the change")
	}
}
