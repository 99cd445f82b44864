package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/pulse/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "PULSE_DB_DSN"

var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func main() {
	var (
		dsn     = flag.String("dsn", "", "database URL (default: $PULSE_DB_DSN, then the [database] config)")
		up      = flag.Bool("up", false, "run all up migrations")
		down    = flag.Bool("down", false, "run all down migrations")
		steps   = flag.Int("steps", 0, "number of migrations (positive=up, negative=down)")
		version = flag.Bool("version", false, "print the current migration version")
		force   = flag.Int("force", -1, "force set version (use with caution)")
	)
	flag.Parse()

	forceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			forceSet = true
		}
	})

	url, err := resolveDSN(*dsn)
	if err != nil {
		fatal("resolve database url", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		fatal("create migration source", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		fatal("create migrator", err)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			return
		}
		if err != nil {
			fatal("read version", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case forceSet:
		if err := m.Force(*force); err != nil {
			fatal("force version", err)
		}
		logger.Info("forced version", "version", *force)
	case *up:
		apply("up", m.Up())
	case *down:
		apply("down", m.Down())
	case *steps != 0:
		apply(fmt.Sprintf("steps %d", *steps), m.Steps(*steps))
	default:
		fmt.Fprintln(os.Stderr, "usage: migrate [-dsn url] -up|-down|-steps N|-version|-force N")
		flag.PrintDefaults()
		os.Exit(2)
	}
}

// resolveDSN prefers the flag, then PULSE_DB_DSN, then the database section
// of the service config so migrations and the server share one source.
func resolveDSN(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(envDSN); v != "" {
		return v, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Database.URL(), nil
}

func apply(direction string, err error) {
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migration to apply", "direction", direction)
		return
	}
	if err != nil {
		fatal("migrate "+direction, err)
	}
	logger.Info("migrations applied", "direction", direction)
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
