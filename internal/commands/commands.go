package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ksdme/vortex/internal/address"
	"github.com/ksdme/vortex/internal/core"
	"github.com/ksdme/vortex/internal/gate"
	"github.com/ksdme/vortex/internal/inbox"
	"github.com/ksdme/vortex/internal/poll"
	"github.com/ksdme/vortex/internal/render"
	"github.com/ksdme/vortex/internal/utils"
	"github.com/pkg/errors"
)

var ErrVerificationRequired = errors.New("verification required, run the verify command with a token first")

type Args struct {
	Generate *struct{} `arg:"subcommand:generate" help:"issue and save a new random address"`

	Address *struct{} `arg:"subcommand:address" help:"print the current address"`

	List *struct{} `arg:"subcommand:list" help:"list the messages in the inbox, newest first"`

	Show *struct {
		ID string `arg:"positional,required" help:"id of the message, as printed by list"`
	} `arg:"subcommand:show" help:"print a message as text"`

	Clear *struct {
		Yes bool `arg:"-y,--yes" help:"do not ask for confirmation"`
	} `arg:"subcommand:clear" help:"delete every message in the inbox"`

	Verify *struct {
		Token string `arg:"positional,required" help:"token issued by the verification challenge"`
	} `arg:"subcommand:verify" help:"exchange a verification token for access to the inbox"`

	Watch *struct{} `arg:"subcommand:watch" help:"print new messages as they arrive"`
}

// IO is where a command reads from and writes to. It is the terminal for the
// standalone binary and the ssh session on the server.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Run parses args and runs the chosen command, returning an exit code.
func Run(ctx context.Context, services *core.Services, name string, args []string, rw IO) int {
	if len(args) == 0 {
		args = []string{"--help"}
	}

	var parsed Args
	if retcode, consumed := utils.ParseArgs(rw.Out, rw.Err, name, args, &parsed); consumed {
		return retcode
	}

	if err := Handle(ctx, services, parsed, rw); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}

		fmt.Fprintln(rw.Err, "error:", err.Error())
		return 1
	}

	return 0
}

// Handle runs an already parsed command.
func Handle(ctx context.Context, services *core.Services, args Args, rw IO) error {
	current, err := services.Start(ctx)
	if err != nil {
		return err
	}

	switch {
	case args.Generate != nil:
		a, err := services.Rotate(ctx)
		if err != nil {
			return errors.Wrap(err, "could not generate address")
		}

		fmt.Fprintln(rw.Out, a)
		return nil

	case args.Address != nil:
		fmt.Fprintln(rw.Out, current)
		return nil

	case args.List != nil:
		if err := requireVerification(services); err != nil {
			return err
		}

		messages, err := services.Client.Fetch(ctx, current)
		if err != nil {
			return errors.Wrap(err, "could not fetch inbox")
		}

		now := time.Now()
		for _, message := range messages {
			fmt.Fprintln(rw.Out, summarize(services.Renderer, message, now))
		}
		return nil

	case args.Show != nil:
		if err := requireVerification(services); err != nil {
			return err
		}

		messages, err := services.Client.Fetch(ctx, current)
		if err != nil {
			return errors.Wrap(err, "could not fetch inbox")
		}

		for _, message := range messages {
			if message.ID == args.Show.ID {
				return show(rw.Out, services.Renderer, message)
			}
		}
		return errors.Errorf("no message with id %s", args.Show.ID)

	case args.Clear != nil:
		if err := requireVerification(services); err != nil {
			return err
		}

		if !args.Clear.Yes {
			confirmed := utils.AskConsent(
				rw.Out,
				rw.In,
				fmt.Sprintf("This will delete every message sent to %s.\nAre you sure? (yes/no) ", current),
			)
			if !confirmed {
				return errors.New("aborting clear operation")
			}
		}

		if err := services.Client.Clear(ctx, current); err != nil {
			return errors.Wrap(err, "could not clear inbox")
		}
		return nil

	case args.Verify != nil:
		if !services.Gate.Enabled() {
			fmt.Fprintln(rw.Out, "verification is not required")
			return nil
		}

		state, err := services.Gate.Submit(ctx, args.Verify.Token)
		if errors.Is(err, gate.ErrGranted) {
			fmt.Fprintln(rw.Out, "already verified")
			return nil
		} else if err != nil {
			return errors.Wrap(err, "could not verify")
		}

		fmt.Fprintln(rw.Out, state)
		return nil

	case args.Watch != nil:
		if err := requireVerification(services); err != nil {
			return err
		}

		return watch(ctx, services, current, rw)

	default:
		return errors.New("unknown operation")
	}
}

func requireVerification(services *core.Services) error {
	if services.Gate.State() != gate.Granted {
		return ErrVerificationRequired
	}
	return nil
}

// Prints messages as they show up until the context is done.
func watch(ctx context.Context, services *core.Services, current address.Address, rw IO) error {
	runner := services.NewRunner()

	seen := map[string]bool{}
	var failing bool
	runner.OnUpdate = func(snapshot poll.Snapshot) {
		if snapshot.Err != nil {
			if !failing {
				fmt.Fprintln(rw.Err, "could not check for new emails, retrying")
			}
			failing = true
			return
		}
		failing = false

		now := time.Now()
		// Oldest first so the newest ends up at the bottom of the terminal.
		for i := len(snapshot.Messages) - 1; i >= 0; i-- {
			message := snapshot.Messages[i]
			if seen[message.ID] {
				continue
			}
			seen[message.ID] = true
			fmt.Fprintln(rw.Out, summarize(services.Renderer, message, now))
		}
	}

	slog.Debug("watching inbox", "address", current)
	fmt.Fprintf(rw.Err, "watching %s, press ctrl+c to stop\n", current)

	runner.Scheduler.SetAddress(current)

	// Follow changes made by other sessions sharing the store. The wait is
	// aborted when the store is closed.
	go func() {
		for {
			a, aborted := services.Store.WaitForChange()
			if aborted {
				return
			}

			fmt.Fprintf(rw.Err, "address changed to %s\n", a)
			runner.SetAddress(a)
		}
	}()

	return runner.Run(ctx)
}

func summarize(renderer *render.Renderer, message inbox.Message, now time.Time) string {
	subject := render.NoSubject
	sender := message.Sender
	if rendered, err := renderer.RenderMessage(message); err == nil {
		subject = rendered.Subject
		sender = rendered.SenderDisplayName
	}
	if sender == "" {
		sender = render.UnknownSender
	}

	return fmt.Sprintf(
		"%s\t%s\t%s\t%s",
		message.ID,
		utils.Ago(message.ReceivedAt, now),
		sender,
		utils.Decode(subject),
	)
}

func show(w io.Writer, renderer *render.Renderer, message inbox.Message) error {
	rendered, err := renderer.RenderMessage(message)
	if err != nil {
		slog.Debug("could not render message", "id", message.ID, "err", err)
		_, err = w.Write(message.RawPayload)
		return err
	}

	from := rendered.SenderAddress
	if from == "" {
		from = message.Sender
	}

	lines := []string{
		"From:     " + from,
		"Subject:  " + utils.Decode(rendered.Subject),
		"Received: " + message.ReceivedAt.Local().Format(time.RFC822),
		"",
		strings.TrimSpace(utils.Decode(rendered.TerminalText)),
	}

	_, err = fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}
