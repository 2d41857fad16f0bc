package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/kitstore/internal/auth"
	"github.com/noah-isme/kitstore/internal/catalog"
	"github.com/noah-isme/kitstore/internal/order"
	"github.com/noah-isme/kitstore/internal/pricing"
)

const pgUniqueViolation = "23505"

const pgKitColumns = `id, name, team, season, (price * 100)::bigint, stock, description, image_url`

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{Pool: pool}
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.Pool.Close()
}

// ListKits returns every kit ordered by team then name.
func (p *Postgres) ListKits(ctx context.Context) ([]catalog.Kit, error) {
	rows, err := p.Pool.Query(ctx, `SELECT `+pgKitColumns+` FROM kits ORDER BY team, name`)
	if err != nil {
		return nil, fmt.Errorf("list kits: %w", err)
	}
	return collectPgKits(rows)
}

// SearchKits matches term case-insensitively against name, team and description.
func (p *Postgres) SearchKits(ctx context.Context, term string) ([]catalog.Kit, error) {
	rows, err := p.Pool.Query(ctx, `SELECT `+pgKitColumns+` FROM kits
		WHERE name ILIKE $1 OR team ILIKE $1 OR description ILIKE $1
		ORDER BY team, name`, likePattern(term))
	if err != nil {
		return nil, fmt.Errorf("search kits: %w", err)
	}
	return collectPgKits(rows)
}

// CountKits returns the number of kits.
func (p *Postgres) CountKits(ctx context.Context) (int64, error) {
	var n int64
	if err := p.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM kits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count kits: %w", err)
	}
	return n, nil
}

func collectPgKits(rows pgx.Rows) ([]catalog.Kit, error) {
	kits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Kit, error) {
		var (
			k     catalog.Kit
			cents int64
		)
		err := row.Scan(&k.ID, &k.Name, &k.Team, &k.Season, &cents, &k.Stock, &k.Description, &k.ImageURL)
		k.Price = pricing.Money(cents)
		return k, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan kits: %w", err)
	}
	return kits, nil
}

// CreateUser inserts an account. Unique violations map to auth.ErrDuplicateUser.
func (p *Postgres) CreateUser(ctx context.Context, u auth.NewUser) (auth.User, error) {
	user := auth.User{Email: u.Email, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
	err := p.Pool.QueryRow(ctx, `INSERT INTO users (email, username, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return auth.User{}, fmt.Errorf("%w: %s", auth.ErrDuplicateUser, pgErr.ConstraintName)
		}
		return auth.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// UserByEmail loads an account with its password hash.
func (p *Postgres) UserByEmail(ctx context.Context, email string) (auth.UserRecord, error) {
	var rec auth.UserRecord
	err := p.Pool.QueryRow(ctx, `SELECT id, email, username, first_name, last_name, password_hash
		FROM users WHERE email = $1`, email,
	).Scan(&rec.ID, &rec.Email, &rec.Username, &rec.FirstName, &rec.LastName, &rec.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.UserRecord{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.UserRecord{}, fmt.Errorf("load user: %w", err)
	}
	return rec, nil
}

// CreateOrder inserts a single pending order row.
func (p *Postgres) CreateOrder(ctx context.Context, o order.NewOrder) (int64, error) {
	var id int64
	err := p.Pool.QueryRow(ctx, `INSERT INTO orders
		(order_number, customer_name, customer_email, shipping_address, payment_method,
		 subtotal, shipping, tax, final_amount, items_count, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric / 100, $7::numeric / 100, $8::numeric / 100, $9::numeric / 100, $10, 'pending', $11)
		RETURNING id`,
		o.Number, o.CustomerName, o.CustomerEmail, o.ShippingAddress, o.PaymentMethod,
		int64(o.Subtotal), int64(o.Shipping), int64(o.Tax), int64(o.FinalAmount), o.ItemsCount, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}
