package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ksdme/vortex/internal/commands"
	"github.com/ksdme/vortex/internal/config"
	"github.com/ksdme/vortex/internal/core"
	"github.com/ksdme/vortex/internal/store/boltstore"
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
	utils.SetupLogger(os.Stderr, settings.Debug)

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

	return commands.Run(ctx, services, "vortex", os.Args[1:], commands.IO{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	})
}
