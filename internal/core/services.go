package core

import (
	"context"
	"log/slog"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/config"
	"github.com/ksdme/vortex/internal/gate"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/ksdme/vortex/internal/poll"
	"github.com/ksdme/vortex/internal/render"
	"github.com/ksdme/vortex/internal/store"
	"github.com/pkg/errors"
)

// Services is everything a frontend needs to run the client. Each session
// gets its own bundle, nothing here is shared through package globals.
type Services struct {
	Config    config.Settings
	Store     store.Store
	Client    *inbox.Client
	Generator *address.Generator
	Renderer  *render.Renderer
	Gate      *gate.Gate
}

func NewServices(settings config.Settings, s store.Store, options ...inbox.Option) (*Services, error) {
	generator, err := address.NewGenerator(settings.EmailDomains, 0)
	if err != nil {
		return nil, err
	}

	client := inbox.NewClient(settings.APIEndpoint, settings.RequestTimeout, options...)

	return &Services{
		Config:    settings,
		Store:     s,
		Client:    client,
		Generator: generator,
		Renderer:  render.NewRenderer(settings.ImageProxy),
		Gate:      gate.New(client, s, settings.VerificationEnabled()),
	}, nil
}

// Start restores the state of an earlier session. It returns the current
// address, generating and saving one if there was none or if the stored one
// is not on a permitted domain anymore.
func (s *Services) Start(ctx context.Context) (address.Address, error) {
	if _, err := s.Gate.Start(ctx); err != nil {
		// Verifying again is always possible.
		slog.Warn("could not restore verification", "err", err)
	}

	return s.EnsureAddress(ctx)
}

func (s *Services) EnsureAddress(ctx context.Context) (address.Address, error) {
	current, ok, err := s.Store.Load(ctx)
	if err != nil {
		return "", errors.Wrap(err, "could not load address")
	}

	if ok && s.Generator.Allowed(current) {
		return current, nil
	} else if ok {
		slog.Info("stored address is not permitted anymore", "address", current)
	}

	return s.Rotate(ctx)
}

// Issues and saves a new random address.
func (s *Services) Rotate(ctx context.Context) (address.Address, error) {
	return s.Replace(ctx, s.Generator.Generate())
}

// Saves an address as the current one.
func (s *Services) Replace(ctx context.Context, a address.Address) (address.Address, error) {
	if !s.Generator.Allowed(a) {
		return "", errors.Wrapf(address.ErrInvalidAddress, "%s is not permitted", a)
	}

	if err := s.Store.Save(ctx, a); err != nil {
		return "", errors.Wrap(err, "could not save address")
	}

	slog.Debug("address changed", "address", a)
	return a, nil
}

// Creates a scheduler that starts suspended unless the gate is granted.
func (s *Services) NewScheduler() *poll.Scheduler {
	return poll.NewScheduler(s.Gate.State() == gate.Granted)
}

func (s *Services) NewRunner() *poll.Runner {
	return poll.NewRunner(s.NewScheduler(), s.Client, s.Config.PollInterval, s.Config.PollJitter)
}

func (s *Services) Close() error {
	return s.Store.Close()
}
