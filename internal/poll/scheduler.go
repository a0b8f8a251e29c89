package poll

import (
	"slices"
	"sync"
	"time"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/inbox"
)

type State int

const (
	// No address yet.
	Idle State = iota
	// An address is present and verification is granted or not required.
	Polling
	// Verification is pending or failed, no fetches are issued.
	Suspended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Suspended:
		return "suspended"
	}
	return "unknown"
}

// A fetch the scheduler wants to be made. It has to be handed back to
// Complete together with its result.
type Request struct {
	Address address.Address

	generation uint64
	sequence   uint64
}

// The messages of one address at one point in time.
type Snapshot struct {
	Address  address.Address
	Messages []inbox.Message

	// The last retrieval error, cleared by the next successful fetch. The
	// messages are kept when a fetch fails.
	Err error

	// True once a fetch for this address succeeded.
	Loaded    bool
	FetchedAt time.Time
}

// Scheduler decides when the inbox of the current address is fetched and
// which results are applied. It does no I/O itself.
//
// Every change of address bumps a generation counter. A result is only
// applied if its request was made in the current generation, anything else
// belongs to an address that is no longer current and is dropped.
type Scheduler struct {
	lock sync.Mutex

	address  address.Address
	verified bool

	generation  uint64
	sequence    uint64
	outstanding uint64
	queued      bool

	snapshot Snapshot
}

// Creates an idle scheduler. Pass verified as true if verification is not
// required at all.
func NewScheduler(verified bool) *Scheduler {
	return &Scheduler{
		verified: verified,
		snapshot: Snapshot{Messages: []inbox.Message{}},
	}
}

func (s *Scheduler) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state()
}

func (s *Scheduler) state() State {
	if s.address.IsZero() {
		return Idle
	} else if !s.verified {
		return Suspended
	}
	return Polling
}

func (s *Scheduler) Address() address.Address {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.address
}

// Re-keys the scheduler to a new address. The previous snapshot is thrown
// away immediately and results of fetches still in flight are ignored.
// Returns false if the address did not change.
func (s *Scheduler) SetAddress(a address.Address) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if a == s.address {
		return false
	}

	s.address = a
	s.generation++
	s.outstanding = 0
	s.queued = false
	s.snapshot = Snapshot{Address: a, Messages: []inbox.Message{}}
	return true
}

// Suspends or resumes polling based on the verification state.
func (s *Scheduler) SetVerified(verified bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.verified = verified
}

// Tick is called on every poll interval. It returns a request if a fetch
// should be made now. Polls are never pipelined, if a fetch is still
// outstanding at most one tick is queued and Complete reports it.
func (s *Scheduler) Tick() (Request, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.tick()
}

func (s *Scheduler) tick() (Request, bool) {
	if s.state() != Polling {
		return Request{}, false
	}

	if s.outstanding != 0 {
		s.queued = true
		return Request{}, false
	}

	s.sequence++
	s.outstanding = s.sequence
	return Request{
		Address:    s.address,
		generation: s.generation,
		sequence:   s.sequence,
	}, true
}

// Complete hands back the result of a request. It returns whether the
// result was applied to the snapshot, and, a follow up request if a tick
// was queued while this one was outstanding.
func (s *Scheduler) Complete(request Request, messages []inbox.Message, err error) (bool, *Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var next *Request
	if request.sequence == s.outstanding {
		s.outstanding = 0
		if s.queued {
			s.queued = false
			if followUp, ok := s.tick(); ok {
				next = &followUp
			}
		}
	}

	if request.generation != s.generation {
		return false, next
	}

	if err != nil {
		s.snapshot.Err = err
		return true, next
	}

	messages = slices.Clone(messages)
	if messages == nil {
		messages = []inbox.Message{}
	}
	inbox.SortNewestFirst(messages)

	s.snapshot.Messages = messages
	s.snapshot.Err = nil
	s.snapshot.Loaded = true
	s.snapshot.FetchedAt = time.Now()
	return true, next
}

// Clear empties the snapshot right away, without waiting for the backend.
// Results of fetches made before the clear are ignored. If the backend
// fails to clear, the next poll brings the messages back.
func (s *Scheduler) Clear() (address.Address, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.address.IsZero() {
		return "", false
	}

	s.generation++
	s.snapshot.Messages = []inbox.Message{}
	s.snapshot.Err = nil
	return s.address, true
}

// Returns a copy of the current snapshot.
func (s *Scheduler) Snapshot() Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()

	snapshot := s.snapshot
	snapshot.Messages = slices.Clone(s.snapshot.Messages)
	return snapshot
}
