package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	lock     sync.Mutex
	inboxes  map[address.Address][]inbox.Message
	fetches  int
	clearErr error
	cleared  chan address.Address
}

func (f *fakeFetcher) Fetch(ctx context.Context, a address.Address) ([]inbox.Message, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.fetches++
	return f.inboxes[a], nil
}

func (f *fakeFetcher) Clear(ctx context.Context, a address.Address) error {
	f.cleared <- a
	return f.clearErr
}

func TestRunner(t *testing.T) {
	fetcher := &fakeFetcher{
		inboxes: map[address.Address][]inbox.Message{
			alice: {message("1", 1), message("2", 2)},
			bob:   {message("3", 3)},
		},
		clearErr: errors.New("connection refused"),
		cleared:  make(chan address.Address, 1),
	}

	scheduler := NewScheduler(true)
	runner := NewRunner(scheduler, fetcher, 10*time.Millisecond, 0)

	updates := make(chan Snapshot, 64)
	runner.OnUpdate = func(snapshot Snapshot) {
		updates <- snapshot
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	waitFor := func(check func(Snapshot) bool) Snapshot {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case snapshot := <-updates:
				if check(snapshot) {
					return snapshot
				}
			case <-deadline:
				t.Fatal("no matching snapshot")
			}
		}
	}

	runner.SetAddress(alice)
	snapshot := waitFor(func(s Snapshot) bool { return s.Address == alice && len(s.Messages) == 2 })
	assert.Equal(t, []string{"2", "1"}, ids(snapshot.Messages))

	// The local inbox is empty even though the backend fails to clear.
	runner.Clear(ctx)
	assert.Empty(t, scheduler.Snapshot().Messages)
	assert.Equal(t, alice, <-fetcher.cleared)

	runner.SetAddress(bob)
	snapshot = waitFor(func(s Snapshot) bool { return s.Address == bob && s.Loaded })
	assert.Equal(t, []string{"3"}, ids(snapshot.Messages))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRunner_Suspended(t *testing.T) {
	fetcher := &fakeFetcher{cleared: make(chan address.Address, 1)}
	runner := NewRunner(NewScheduler(false), fetcher, time.Millisecond, 0)
	runner.SetAddress(alice)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	runner.Run(ctx)

	fetcher.lock.Lock()
	defer fetcher.lock.Unlock()
	assert.Zero(t, fetcher.fetches)
}
