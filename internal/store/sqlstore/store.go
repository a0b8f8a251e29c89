package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/bus"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/ksdme/vortex/internal/store"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Emitted whenever the address of an account changes, so that every
// session of that account follows along.
var AddressChangedSignal = bus.NewSignalBus[int64, address.Address]()

// Store is the slot of one account in a shared sql database.
type Store struct {
	db      *bun.DB
	account int64

	ctx    context.Context
	cancel context.CancelFunc
}

var _ store.Store = (*Store)(nil)

// Open returns the slot of an account. Closing it does not close the
// database, which is shared by all accounts.
func Open(db *bun.DB, account Account) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		db:      db,
		account: account.ID,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Store) slot(ctx context.Context) (*Slot, error) {
	var slot Slot
	err := s.db.
		NewSelect().
		Model(&slot).
		Where("account_id = ?", s.account).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not query slot")
	}
	return &slot, nil
}

func (s *Store) Load(ctx context.Context) (address.Address, bool, error) {
	slot, err := s.slot(ctx)
	if err != nil || slot == nil {
		return "", false, err
	}

	a := store.Normalize(slot.Address)
	return a, !a.IsZero(), nil
}

func (s *Store) Save(ctx context.Context, a address.Address) error {
	slot := &Slot{
		AccountID: s.account,
		Address:   a.String(),
		UpdatedAt: time.Now(),
	}

	_, err := s.db.
		NewInsert().
		Model(slot).
		On("CONFLICT (account_id) DO UPDATE").
		Set("address = EXCLUDED.address").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "could not save address")
	}

	AddressChangedSignal.Emit(s.account, a)
	return nil
}

func (s *Store) LoadCredential(ctx context.Context) (inbox.Credential, bool, error) {
	slot, err := s.slot(ctx)
	if err != nil || slot == nil {
		return inbox.Credential{}, false, err
	}

	credential := inbox.Credential{
		Kind:  inbox.CredentialKind(slot.CredentialKind),
		Token: slot.CredentialToken,
	}
	return credential, !credential.IsZero(), nil
}

func (s *Store) SaveCredential(ctx context.Context, credential inbox.Credential) error {
	slot := &Slot{
		AccountID:       s.account,
		CredentialKind:  string(credential.Kind),
		CredentialToken: credential.Token,
		UpdatedAt:       time.Now(),
	}

	_, err := s.db.
		NewInsert().
		Model(slot).
		On("CONFLICT (account_id) DO UPDATE").
		Set("credential_kind = EXCLUDED.credential_kind").
		Set("credential_token = EXCLUDED.credential_token").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "could not save credential")
	}
	return nil
}

func (s *Store) WaitForChange() (address.Address, bool) {
	return AddressChangedSignal.Wait(s.ctx, s.account)
}

// Close aborts the pending waits of this store only.
func (s *Store) Close() error {
	s.cancel()
	return nil
}
