// Command migrate applies or inspects the embedded schema migrations.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"reelpress/internal/config"
	"reelpress/migrations"
)

const usage = `Usage: migrate [-db path] <command> [args]

Commands:
  up            Migrate to the latest version
  up-to N       Migrate up to version N
  down          Roll back one version
  down-to N     Roll back to version N
  redo          Roll back and re-apply the latest version
  status        Show migration status
  version       Show current version
  reset         Roll back all migrations
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", cfg.DatabasePath, "path to sqlite database")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*dbPath, args[0], args[1:]); err != nil {
		slog.Error("migrate", "command", args[0], "db", *dbPath, "error", err)
		os.Exit(1)
	}
}

func run(dbPath, cmd string, args []string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	switch cmd {
	case "up":
		return goose.Up(db, ".")
	case "up-to", "down-to":
		if len(args) != 1 {
			return fmt.Errorf("%s needs a version argument", cmd)
		}
		version, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("parse version: %w", err)
		}
		if cmd == "up-to" {
			return goose.UpTo(db, ".", version)
		}
		return goose.DownTo(db, ".", version)
	case "down":
		return goose.Down(db, ".")
	case "redo":
		return goose.Redo(db, ".")
	case "status":
		return goose.Status(db, ".")
	case "version":
		return goose.Version(db, ".")
	case "reset":
		return goose.Reset(db, ".")
	}
	return fmt.Errorf("unknown command %q", cmd)
}
