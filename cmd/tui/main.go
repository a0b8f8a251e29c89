package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ksdme/vortex/internal/config"
	"github.com/ksdme/vortex/internal/core"
	"github.com/ksdme/vortex/internal/store/boltstore"
	"github.com/ksdme/vortex/internal/tui"
	"github.com/ksdme/vortex/internal/tui/colors"
	"github.com/ksdme/vortex/internal/utils"
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

	// The terminal is taken by the ui, logs go to a file if at all.
	logs, err := utils.OpenLogFile(settings.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer logs.Close()
	utils.SetupLogger(logs, settings.Debug)

	s, err := boltstore.Open(settings.StatePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	services, err := core.NewServices(settings, s)
	if err != nil {
		s.Close()
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer services.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := lipgloss.DefaultRenderer()
	program := tea.NewProgram(
		tui.NewModel(ctx, services, renderer, colors.ForRenderer(renderer), os.Stdout, tea.Quit),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		slog.Error("program exited", "err", err)
		return 1
	}

	return 0
}
