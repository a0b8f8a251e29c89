package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/ksdme/vortex/internal/config"
	"github.com/ksdme/vortex/internal/store/sqlstore"
	"github.com/ksdme/vortex/internal/utils"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		slog.Error("could not load configuration", "err", err)
		os.Exit(1)
	}
	utils.SetupLogger(os.Stderr, settings.Debug)

	sqldb, err := sql.Open("sqlite3", settings.DBURI)
	if err != nil {
		slog.Error("opening db failed", "err", err)
		os.Exit(1)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	if err := sqlstore.Migrate(context.Background(), db); err != nil {
		slog.Error("could not migrate", "err", err)
		os.Exit(1)
	}
	slog.Info("created tables", "db", settings.DBURI)
}
