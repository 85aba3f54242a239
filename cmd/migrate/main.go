package main

import (
	"database/sql"
	"flag"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/meridian-commerce/meridian/internal/app"
	"github.com/meridian-commerce/meridian/migrations"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version, force")
		steps  = flag.Int("steps", 1, "Number of steps for down migration")
		target = flag.Uint("target", 0, "Target version for force")
	)
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	m, err := newMigrator(cfg.PGDSN)
	if err != nil {
		logger.Error("init migrator", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			logger.Warn("close migrator", slog.Any("source_error", sourceErr), slog.Any("db_error", dbErr))
		}
	}()

	switch *action {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-*steps)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil {
			err = verr
			break
		}
		logger.Info("schema version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	case "force":
		logger.Warn("forcing migration version, this clears dirty state", slog.Uint64("target", uint64(*target)))
		err = m.Force(int(*target))
	default:
		logger.Error("unknown action", slog.String("action", *action))
		os.Exit(1)
	}
	if err != nil && err != migrate.ErrNoChange {
		logger.Error("migration failed", slog.String("action", *action), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migration complete", slog.String("action", *action))
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, err
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", source, "pgx5", driver)
}
