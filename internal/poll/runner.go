package poll

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/inbox"
)

type Fetcher interface {
	Fetch(ctx context.Context, a address.Address) ([]inbox.Message, error)
	Clear(ctx context.Context, a address.Address) error
}

type result struct {
	request  Request
	messages []inbox.Message
	err      error
}

// Runner drives a Scheduler on a wall clock timer. The terminal UI drives
// the scheduler through its own event loop instead.
type Runner struct {
	Scheduler *Scheduler
	Fetcher   Fetcher

	Interval time.Duration
	Jitter   time.Duration

	// Called with the new snapshot every time one is applied. It is called
	// from the goroutine running Run.
	OnUpdate func(Snapshot)

	results chan result
	wake    chan struct{}
	clears  chan Snapshot
}

func NewRunner(scheduler *Scheduler, fetcher Fetcher, interval time.Duration, jitter time.Duration) *Runner {
	return &Runner{
		Scheduler: scheduler,
		Fetcher:   fetcher,
		Interval:  interval,
		Jitter:    jitter,
		results:   make(chan result),
		wake:      make(chan struct{}, 1),
		clears:    make(chan Snapshot, 1),
	}
}

// Run polls until the context is done. The first tick happens right away.
func (r *Runner) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			r.issue(ctx)
			timer.Reset(r.next())

		case <-r.wake:
			r.issue(ctx)

		case snapshot := <-r.clears:
			r.publish(snapshot)

		case result := <-r.results:
			applied, next := r.Scheduler.Complete(result.request, result.messages, result.err)
			if result.err != nil {
				slog.Debug("could not fetch inbox", "address", result.request.Address, "err", result.err)
			}
			if applied {
				r.publish(r.Scheduler.Snapshot())
			}
			if next != nil {
				r.fetch(ctx, *next)
			}
		}
	}
}

// Re-keys the runner to another address and polls it right away.
func (r *Runner) SetAddress(a address.Address) {
	if r.Scheduler.SetAddress(a) {
		r.poke()
	}
}

// Resumes or suspends polling.
func (r *Runner) SetVerified(verified bool) {
	r.Scheduler.SetVerified(verified)
	if verified {
		r.poke()
	}
}

// Clear empties the inbox locally and asks the backend to do the same in
// the background. A failure on the backend is only logged.
func (r *Runner) Clear(ctx context.Context) {
	a, ok := r.Scheduler.Clear()
	if !ok {
		return
	}

	// Replace a pending notification with the newer one.
	snapshot := r.Scheduler.Snapshot()
	select {
	case <-r.clears:
	default:
	}
	select {
	case r.clears <- snapshot:
	default:
	}

	go func() {
		if err := r.Fetcher.Clear(ctx, a); err != nil {
			slog.Warn("could not clear inbox", "address", a, "err", err)
		}
	}()
}

func (r *Runner) issue(ctx context.Context) {
	if request, ok := r.Scheduler.Tick(); ok {
		r.fetch(ctx, request)
	}
}

func (r *Runner) fetch(ctx context.Context, request Request) {
	go func() {
		messages, err := r.Fetcher.Fetch(ctx, request.Address)
		select {
		case r.results <- result{request, messages, err}:
		case <-ctx.Done():
		}
	}()
}

func (r *Runner) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) publish(snapshot Snapshot) {
	if r.OnUpdate != nil {
		r.OnUpdate(snapshot)
	}
}

func (r *Runner) next() time.Duration {
	return Next(r.Interval, r.Jitter)
}

// Next returns the delay until the next tick, the interval plus a random
// amount of up to jitter.
func Next(interval time.Duration, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return interval
	}
	return interval + rand.N(jitter)
}
