package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/bus"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/ksdme/vortex/internal/store"
	bbolt "go.etcd.io/bbolt"
)

var (
	bucketClient  = []byte("client")
	keyAddress    = []byte("address")
	keyCredential = []byte("credential")
)

// Notifies waiters in this process when an address is saved, keyed by the
// path of the database.
var addressChanged = bus.NewSignalBus[string, address.Address]()

// Store keeps the client state in a bbolt file. bbolt locks the file, so a
// second client on the same file fails to open instead of racing.
type Store struct {
	bolt *bbolt.DB
	path string

	ctx    context.Context
	cancel context.CancelFunc
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the state file and makes sure the bucket exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("boltstore: create %s: %w", dir, err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketClient)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create bucket: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		bolt:   db,
		path:   path,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (s *Store) Load(ctx context.Context) (address.Address, bool, error) {
	var raw []byte
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		raw = copyBytes(tx.Bucket(bucketClient).Get(keyAddress))
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("boltstore: load address: %w", err)
	}

	a := store.Normalize(string(raw))
	if a.IsZero() {
		return "", false, nil
	}
	return a, true, nil
}

func (s *Store) Save(ctx context.Context, a address.Address) error {
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketClient).Put(keyAddress, []byte(a.String()))
	})
	if err != nil {
		return fmt.Errorf("boltstore: save address: %w", err)
	}

	addressChanged.Emit(s.path, a)
	return nil
}

func (s *Store) LoadCredential(ctx context.Context) (inbox.Credential, bool, error) {
	var raw []byte
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		raw = copyBytes(tx.Bucket(bucketClient).Get(keyCredential))
		return nil
	})
	if err != nil {
		return inbox.Credential{}, false, fmt.Errorf("boltstore: load credential: %w", err)
	}
	if len(raw) == 0 {
		return inbox.Credential{}, false, nil
	}

	var credential inbox.Credential
	if err := json.Unmarshal(raw, &credential); err != nil {
		return inbox.Credential{}, false, fmt.Errorf("boltstore: decode credential: %w", err)
	}
	return credential, !credential.IsZero(), nil
}

func (s *Store) SaveCredential(ctx context.Context, credential inbox.Credential) error {
	raw, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("boltstore: encode credential: %w", err)
	}

	err = s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketClient).Put(keyCredential, raw)
	})
	if err != nil {
		return fmt.Errorf("boltstore: save credential: %w", err)
	}
	return nil
}

func (s *Store) WaitForChange() (address.Address, bool) {
	return addressChanged.Wait(s.ctx, s.path)
}

// Close aborts pending waits and closes the underlying bbolt database.
func (s *Store) Close() error {
	s.cancel()
	return s.bolt.Close()
}

// Values returned by bbolt are only valid for the life of the transaction.
func copyBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	return append([]byte(nil), value...)
}
