package repo

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations for driver.
func Migrate(driver, dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("open migrations for %s: %w", driver, err)
	}
	url, err := migrateURL(driver, dsn)
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// migrateURL converts an application DSN into the URL form golang-migrate expects.
func migrateURL(driver, dsn string) (string, error) {
	switch driver {
	case DriverPostgres:
		for _, scheme := range []string{"postgres://", "postgresql://"} {
			if strings.HasPrefix(dsn, scheme) {
				return "pgx5://" + strings.TrimPrefix(dsn, scheme), nil
			}
		}
		return "", fmt.Errorf("postgres dsn must be a URL, got %q", redactDSN(dsn))
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(strings.TrimPrefix(dsn, "mysql://"))
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.MultiStatements = true
		return "mysql://" + cfg.FormatDSN(), nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		return "***" + dsn[at:]
	}
	return dsn
}
