package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/ksdme/vortex/internal/utils"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/ssh"
)

// An account is identified by the ssh key the user connects with.
type Account struct {
	ID           int64     `bun:",pk,autoincrement"`
	KeySignature string    `bun:",notnull,unique"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// The single durable slot of an account.
type Slot struct {
	ID int64 `bun:",pk,autoincrement"`

	AccountID int64    `bun:",notnull,unique"`
	Account   *Account `bun:"rel:belongs-to,join:account_id=id,on_delete:cascade"`

	Address         string `bun:",notnull"`
	CredentialKind  string `bun:",notnull"`
	CredentialToken string `bun:",notnull"`

	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// Creates the tables if they do not exist yet.
// TODO: Add incremental migrations once the schema changes for the first time.
func Migrate(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*Account)(nil), (*Slot)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "could not create table")
		}
	}
	return nil
}

// Derives a stable signature from a public key.
func KeySignature(key ssh.PublicKey) string {
	return ssh.FingerprintSHA256(key)
}

func GetOrCreateAccountFromPublicKey(ctx context.Context, db *bun.DB, key ssh.PublicKey) (*Account, error) {
	signature := KeySignature(key)

	find := func() (*Account, error) {
		var account Account
		err := db.
			NewSelect().
			Model(&account).
			Where("key_signature = ?", signature).
			Scan(ctx)
		if err != nil {
			return nil, err
		}
		return &account, nil
	}

	account, err := find()
	if err == nil {
		return account, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "could not query accounts")
	}

	// Another session with the same key might create it concurrently.
	account = &Account{KeySignature: signature}
	if _, err := db.NewInsert().Model(account).Exec(ctx); err != nil {
		if utils.IsUniqueConstraintErr(err) {
			if account, err := find(); err == nil {
				return account, nil
			}
		}
		return nil, errors.Wrap(err, "could not create account")
	}

	return account, nil
}
