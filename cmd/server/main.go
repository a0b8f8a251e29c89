package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/ksdme/vortex/internal/commands"
	"github.com/ksdme/vortex/internal/config"
	"github.com/ksdme/vortex/internal/core"
	"github.com/ksdme/vortex/internal/store/sqlstore"
	"github.com/ksdme/vortex/internal/tui"
	"github.com/ksdme/vortex/internal/tui/colors"
	"github.com/ksdme/vortex/internal/utils"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	utils.SetupLogger(os.Stderr, settings.Debug)

	sqldb, err := sql.Open("sqlite3", settings.DBURI)
	if err != nil {
		slog.Error("opening db failed", "err", err)
		return 1
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if settings.DBMigrate {
		if err := sqlstore.Migrate(ctx, db); err != nil {
			slog.Error("could not migrate", "err", err)
			return 1
		}
	}

	server, err := wish.NewServer(
		wish.WithAddress(settings.SSHBindAddr),
		wish.WithHostKeyPath(settings.SSHHostKeyPath),
		// Accounts are keyed by the public key, any key is welcome.
		wish.WithPublicKeyAuth(func(ssh.Context, ssh.PublicKey) bool {
			return true
		}),
		wish.WithMiddleware(
			func(next ssh.Handler) ssh.Handler {
				return func(session ssh.Session) {
					handle(next, session, db, settings)
				}
			},
			logging.Middleware(),
		),
	)
	if err != nil {
		slog.Error("could not create server", "err", err)
		return 1
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("starting ssh server", "address", settings.SSHBindAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		slog.Info("stopping ssh server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		slog.Error("server exited", "err", err)
		return 1
	}

	return 0
}

// Serves one session. Every account has its own slot, sessions of the same
// account share the address.
func handle(next ssh.Handler, session ssh.Session, db *bun.DB, settings config.Settings) {
	ctx := session.Context()

	account, err := sqlstore.GetOrCreateAccountFromPublicKey(ctx, db, session.PublicKey())
	if err != nil {
		slog.Error("could not load account", "err", err)
		wish.Fatalln(session, "could not load your account, try again later")
		return
	}

	services, err := core.NewServices(settings, sqlstore.Open(db, *account))
	if err != nil {
		slog.Error("could not create services", "err", err)
		wish.Fatalln(session, "something went wrong, try again later")
		return
	}
	defer services.Close()

	// Show the ui only on an interactive session without a command.
	_, _, interactive := session.Pty()
	if interactive && len(session.Command()) == 0 {
		utils.RunTeaInSession(next, session, func(renderer *lipgloss.Renderer) tea.Model {
			return tui.NewModel(ctx, services, renderer, colors.ForRenderer(renderer), session, tea.Quit)
		})
		return
	}

	code := commands.Run(ctx, services, "ssh vortex", session.Command(), commands.IO{
		In:  session,
		Out: session,
		Err: session.Stderr(),
	})
	session.Exit(code)
}
