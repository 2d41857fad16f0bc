// Package repo implements the store's persistence on PostgreSQL or MySQL.
package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/kitstore/internal/auth"
	"github.com/noah-isme/kitstore/internal/catalog"
	"github.com/noah-isme/kitstore/internal/order"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Store is everything the API needs from the database.
type Store interface {
	catalog.Repository
	auth.Repository
	order.Repository
	Ping(ctx context.Context) error
	Close()
}

// ParseDriver normalises a configured driver name.
func ParseDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DriverPostgres, "postgresql", "pgx":
		return DriverPostgres, nil
	case DriverMySQL, "mariadb":
		return DriverMySQL, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// likePattern wraps term for a substring LIKE match, escaping wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
