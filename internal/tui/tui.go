package tui

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/core"
	"github.com/ksdme/vortex/internal/gate"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/ksdme/vortex/internal/poll"
	"github.com/ksdme/vortex/internal/render"
	"github.com/ksdme/vortex/internal/tui/colors"
	"github.com/ksdme/vortex/internal/tui/components/help"
	"github.com/ksdme/vortex/internal/tui/edit"
	"github.com/ksdme/vortex/internal/tui/email"
	"github.com/ksdme/vortex/internal/tui/home"
	"github.com/ksdme/vortex/internal/tui/verify"
)

type mode int

const (
	Home mode = iota
	Email
	Verify
	Edit
)

type startedMsg struct {
	address address.Address
	state   gate.State
	err     error
}

// The address was changed by this session.
type addressChangedMsg struct {
	address address.Address
	err     error
}

// The address was changed by another session sharing the same store.
type addressChangedElsewhereMsg struct {
	address address.Address
}

type pollTickMsg struct{}

type fetchedMsg struct {
	request  poll.Request
	messages []inbox.Message
	previews map[string]render.Rendered
	err      error
}

type noticeMsg struct {
	notice string
}

type noticeExpiredMsg struct {
	notice string
}

// Represents the top most model.
type Model struct {
	ctx       context.Context
	services  *core.Services
	scheduler *poll.Scheduler

	// Where clipboard escape sequences are written to.
	clipboard io.Writer

	mode   mode
	home   home.Model
	email  email.Model
	verify verify.Model
	edit   edit.Model

	started bool
	fatal   error

	// An address change is being saved, others wait for it to land so the
	// store and the polled address cannot disagree.
	changing bool

	width  int
	height int

	KeyMap   KeyMap
	Colors   colors.ColorPalette
	Renderer *lipgloss.Renderer

	quit     tea.Cmd
	quitting bool
}

func NewModel(
	ctx context.Context,
	services *core.Services,
	renderer *lipgloss.Renderer,
	colors colors.ColorPalette,
	clipboard io.Writer,
	quit tea.Cmd,
) Model {
	return Model{
		ctx:       ctx,
		services:  services,
		scheduler: services.NewScheduler(),
		clipboard: clipboard,

		mode:   Home,
		home:   home.NewModel(renderer, colors),
		email:  email.NewModel(renderer, colors),
		verify: verify.NewModel(services.Config.TurnstileSiteKey, renderer, colors),
		edit:   edit.NewModel(services.Generator.Domains(), renderer, colors),

		KeyMap:   DefaultKeyMap(),
		Renderer: renderer,
		Colors:   colors,

		quit: quit,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.home.Init(),
		m.email.Init(),
		m.start,
		m.listenToAddressChanges,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.home.Width = m.width - 12
		m.home.Height = m.height - 6

		m.email.Width = m.home.Width
		m.email.Height = m.home.Height
		m.verify.Width = m.home.Width
		m.verify.Height = m.home.Height
		m.edit.Width = m.home.Width
		m.edit.Height = m.home.Height

		m.home, _ = m.home.Update(msg)
		m.email, _ = m.email.Update(msg)
		m.verify, _ = m.verify.Update(msg)
		m.edit, _ = m.edit.Update(msg)
		return m, nil

	case tea.KeyMsg:
		quit := m.KeyMap.Quit
		if m.mode == Verify || m.mode == Edit || m.fatal != nil {
			quit = m.KeyMap.ForceQuit
		}
		if key.Matches(msg, quit) || (m.fatal != nil && key.Matches(msg, m.KeyMap.Quit)) {
			m.quitting = true
			return m, m.quit
		}
		if !m.started {
			return m, nil
		}

	case spinner.TickMsg:
		var homeCmd, verifyCmd tea.Cmd
		m.home, homeCmd = m.home.Update(msg)
		m.verify, verifyCmd = m.verify.Update(msg)
		return m, tea.Batch(homeCmd, verifyCmd)

	case startedMsg:
		if msg.err != nil {
			slog.Error("could not start", "err", msg.err)
			m.fatal = msg.err
			return m, nil
		}

		m.started = true
		m.scheduler.SetVerified(msg.state == gate.Granted)
		m.scheduler.SetAddress(msg.address)
		m.home.SetAddress(msg.address)

		cmds := []tea.Cmd{m.fetchNow(), m.schedulePoll()}
		if msg.state != gate.Granted {
			m.mode = Verify
			cmds = append(cmds, m.verify.Init())
		}
		return m, tea.Batch(cmds...)

	case pollTickMsg:
		return m, tea.Batch(m.fetchNow(), m.schedulePoll())

	case fetchedMsg:
		applied, next := m.scheduler.Complete(msg.request, msg.messages, msg.err)
		if applied {
			m.home.SetSnapshot(m.scheduler.Snapshot(), msg.previews)
		}
		if next != nil {
			return m, m.fetch(*next)
		}
		return m, nil

	case addressChangedMsg:
		m.changing = false
		if msg.err != nil {
			slog.Warn("could not change address", "err", msg.err)
			if m.mode == Edit {
				m.edit.SetError(msg.err)
			} else {
				m.home.SetNotice("could not change address")
			}
			return m, nil
		}

		if m.mode == Edit {
			m.mode = Home
		}
		return m, m.switchAddress(msg.address)

	case addressChangedElsewhereMsg:
		return m, tea.Batch(
			m.switchAddress(msg.address),
			m.listenToAddressChanges,
		)

	case noticeMsg:
		m.home.SetNotice(msg.notice)
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg {
			return noticeExpiredMsg(msg)
		})

	case noticeExpiredMsg:
		if m.home.Notice() == msg.notice {
			m.home.SetNotice("")
		}
		return m, nil

	case home.CopyAddressMsg:
		return m, m.copyAddress(m.scheduler.Address())

	case home.GenerateAddressMsg:
		if m.changing {
			return m, nil
		}
		m.changing = true
		return m, m.rotateAddress

	case home.EditAddressMsg:
		m.mode = Edit
		return m, m.edit.Reset(m.scheduler.Address())

	case home.ClearInboxMsg:
		a, ok := m.scheduler.Clear()
		if !ok {
			return m, nil
		}
		m.home.SetSnapshot(m.scheduler.Snapshot(), nil)
		return m, m.clearInbox(a)

	case home.RefreshMsg:
		return m, m.fetchNow()

	case email.MailSelectedMsg:
		if msg.Rendered.Subject == "" {
			if rendered, err := m.services.Renderer.RenderMessage(msg.Message); err == nil {
				msg.Rendered = rendered
			} else {
				slog.Debug("could not render message", "id", msg.Message.ID, "err", err)
			}
		}

		m.mode = Email
		m.email, cmd = m.email.Update(msg)
		return m, cmd

	case email.MailDismissMsg:
		m.mode = Home
		return m, nil

	case verify.SubmittedMsg:
		return m, m.submitVerification(msg.Token)

	case verify.ResultMsg:
		m.verify, cmd = m.verify.Update(msg)
		if msg.State == gate.Granted {
			m.scheduler.SetVerified(true)
			m.mode = Home
			return m, tea.Batch(cmd, m.fetchNow())
		}
		return m, cmd

	case edit.SubmittedMsg:
		if m.changing {
			return m, nil
		}
		m.changing = true
		return m, m.replaceAddress(msg.Local, msg.Domain)

	case edit.DismissMsg:
		m.mode = Home
		return m, nil
	}

	switch m.mode {
	case Home:
		m.home, cmd = m.home.Update(msg)
	case Email:
		m.email, cmd = m.email.Update(msg)
	case Verify:
		m.verify, cmd = m.verify.Update(msg)
	case Edit:
		m.edit, cmd = m.edit.Update(msg)
	}

	return m, cmd
}

func (m Model) View() string {
	// This lets us not leave behind lines at the end.
	if m.quitting {
		return ""
	}

	var content string
	if m.fatal != nil {
		content = m.Renderer.
			NewStyle().
			Foreground(m.Colors.Error).
			Width(max(m.width-12, 20)).
			Render("Could not start: " + m.fatal.Error())
	} else {
		switch m.mode {
		case Home:
			content = m.home.View()
		case Email:
			content = m.email.View()
		case Verify:
			content = m.verify.View()
		case Edit:
			content = m.edit.View()
		}
	}

	return m.Renderer.
		NewStyle().
		Padding(2, 6).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Top,
				content,
				help.View(m.Help(), m.Renderer, m.Colors),
			),
		)
}

func (m Model) Help() []key.Binding {
	if m.fatal != nil {
		return []key.Binding{m.KeyMap.Quit}
	}

	var bindings []key.Binding
	switch m.mode {
	case Home:
		bindings = append(bindings, m.home.Help()...)
	case Email:
		bindings = append(bindings, m.email.Help()...)
	case Verify:
		bindings = append(bindings, m.verify.Help()...)
		return append(bindings, m.KeyMap.ForceQuit)
	case Edit:
		bindings = append(bindings, m.edit.Help()...)
		return append(bindings, m.KeyMap.ForceQuit)
	}

	return append(bindings, m.KeyMap.Quit)
}

func (m Model) start() tea.Msg {
	a, err := m.services.Start(m.ctx)
	return startedMsg{
		address: a,
		state:   m.services.Gate.State(),
		err:     err,
	}
}

func (m Model) listenToAddressChanges() tea.Msg {
	if value, aborted := m.services.Store.WaitForChange(); !aborted {
		return addressChangedElsewhereMsg{value}
	}

	return nil
}

func (m Model) schedulePoll() tea.Cmd {
	delay := poll.Next(m.services.Config.PollInterval, m.services.Config.PollJitter)
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

// Fetches right away, unless the scheduler is suspended or a fetch is
// already outstanding.
func (m Model) fetchNow() tea.Cmd {
	if request, ok := m.scheduler.Tick(); ok {
		return m.fetch(request)
	}
	return nil
}

func (m Model) fetch(request poll.Request) tea.Cmd {
	known := m.home.Previews()
	return func() tea.Msg {
		messages, err := m.services.Client.Fetch(m.ctx, request.Address)
		if err != nil {
			slog.Debug("could not fetch inbox", "address", request.Address, "err", err)
			return fetchedMsg{request: request, err: err}
		}

		previews := map[string]render.Rendered{}
		for _, message := range messages {
			if _, ok := known[message.ID]; ok {
				continue
			}

			rendered, err := m.services.Renderer.RenderMessage(message)
			if err != nil {
				slog.Debug("could not render message", "id", message.ID, "err", err)
				continue
			}
			previews[message.ID] = rendered
		}

		return fetchedMsg{
			request:  request,
			messages: messages,
			previews: previews,
		}
	}
}

func (m *Model) switchAddress(a address.Address) tea.Cmd {
	if !m.scheduler.SetAddress(a) {
		return nil
	}

	m.home.SetAddress(a)
	if m.mode == Email {
		m.mode = Home
	}
	return m.fetchNow()
}

func (m Model) rotateAddress() tea.Msg {
	a, err := m.services.Rotate(m.ctx)
	return addressChangedMsg{address: a, err: err}
}

func (m Model) replaceAddress(local string, domain string) tea.Cmd {
	return func() tea.Msg {
		a, err := m.services.Generator.Make(local, domain)
		if err != nil {
			return addressChangedMsg{err: err}
		}

		a, err = m.services.Replace(m.ctx, a)
		return addressChangedMsg{address: a, err: err}
	}
}

// Clearing is optimistic, a failure is corrected by the next poll.
func (m Model) clearInbox(a address.Address) tea.Cmd {
	return func() tea.Msg {
		if err := m.services.Client.Clear(m.ctx, a); err != nil {
			slog.Warn("could not clear inbox", "address", a, "err", err)
		}
		return nil
	}
}

func (m Model) copyAddress(a address.Address) tea.Cmd {
	return func() tea.Msg {
		if a.IsZero() || m.clipboard == nil {
			return nil
		}

		if _, err := osc52.New(a.String()).WriteTo(m.clipboard); err != nil {
			slog.Debug("could not copy address", "err", err)
			return noticeMsg{"could not copy"}
		}
		return noticeMsg{"copied"}
	}
}

func (m Model) submitVerification(token string) tea.Cmd {
	return func() tea.Msg {
		state, err := m.services.Gate.Submit(m.ctx, token)
		return verify.ResultMsg{State: state, Err: err}
	}
}

type KeyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}
