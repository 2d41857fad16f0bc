package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/noah-isme/kitstore/internal/auth"
	"github.com/noah-isme/kitstore/internal/catalog"
	"github.com/noah-isme/kitstore/internal/order"
	"github.com/noah-isme/kitstore/internal/pricing"
)

const mysqlDuplicateEntry = 1062

const myKitColumns = `id, name, team, season, CAST(ROUND(price * 100) AS SIGNED), stock,
	COALESCE(description, ''), COALESCE(image_url, '')`

// MySQL implements Store on database/sql with the go-sql-driver/mysql driver.
type MySQL struct {
	DB *sql.DB
}

// OpenMySQL opens a pooled connection for dsn.
func OpenMySQL(dsn string) (*MySQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &MySQL{DB: db}, nil
}

// Ping checks connectivity.
func (m *MySQL) Ping(ctx context.Context) error {
	return m.DB.PingContext(ctx)
}

// Close releases the pool.
func (m *MySQL) Close() {
	_ = m.DB.Close()
}

// ListKits returns every kit ordered by team then name.
func (m *MySQL) ListKits(ctx context.Context) ([]catalog.Kit, error) {
	rows, err := m.DB.QueryContext(ctx, `SELECT `+myKitColumns+` FROM kits ORDER BY team, name`)
	if err != nil {
		return nil, fmt.Errorf("list kits: %w", err)
	}
	return scanMyKits(rows)
}

// SearchKits matches term against name, team and description using the column collation.
func (m *MySQL) SearchKits(ctx context.Context, term string) ([]catalog.Kit, error) {
	pattern := likePattern(term)
	rows, err := m.DB.QueryContext(ctx, `SELECT `+myKitColumns+` FROM kits
		WHERE name LIKE ? OR team LIKE ? OR description LIKE ?
		ORDER BY team, name`, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search kits: %w", err)
	}
	return scanMyKits(rows)
}

// CountKits returns the number of kits.
func (m *MySQL) CountKits(ctx context.Context) (int64, error) {
	var n int64
	if err := m.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM kits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count kits: %w", err)
	}
	return n, nil
}

func scanMyKits(rows *sql.Rows) ([]catalog.Kit, error) {
	defer rows.Close()
	kits := []catalog.Kit{}
	for rows.Next() {
		var (
			k     catalog.Kit
			cents int64
		)
		if err := rows.Scan(&k.ID, &k.Name, &k.Team, &k.Season, &cents, &k.Stock, &k.Description, &k.ImageURL); err != nil {
			return nil, fmt.Errorf("scan kit: %w", err)
		}
		k.Price = pricing.Money(cents)
		kits = append(kits, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kits: %w", err)
	}
	return kits, nil
}

// CreateUser inserts an account. Duplicate keys map to auth.ErrDuplicateUser.
func (m *MySQL) CreateUser(ctx context.Context, u auth.NewUser) (auth.User, error) {
	res, err := m.DB.ExecContext(ctx, `INSERT INTO users (email, username, password_hash, first_name, last_name)
		VALUES (?, ?, ?, ?, ?)`, u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName)
	if err != nil {
		if isMySQLDuplicate(err) {
			return auth.User{}, fmt.Errorf("%w: %v", auth.ErrDuplicateUser, err)
		}
		return auth.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return auth.User{}, fmt.Errorf("user id: %w", err)
	}
	return auth.User{ID: id, Email: u.Email, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}, nil
}

// UserByEmail loads an account with its password hash.
func (m *MySQL) UserByEmail(ctx context.Context, email string) (auth.UserRecord, error) {
	var rec auth.UserRecord
	err := m.DB.QueryRowContext(ctx, `SELECT id, email, username, first_name, last_name, password_hash
		FROM users WHERE email = ?`, email,
	).Scan(&rec.ID, &rec.Email, &rec.Username, &rec.FirstName, &rec.LastName, &rec.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.UserRecord{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.UserRecord{}, fmt.Errorf("load user: %w", err)
	}
	return rec, nil
}

// CreateOrder inserts a single pending order row.
func (m *MySQL) CreateOrder(ctx context.Context, o order.NewOrder) (int64, error) {
	res, err := m.DB.ExecContext(ctx, `INSERT INTO orders
		(order_number, customer_name, customer_email, shipping_address, payment_method,
		 subtotal, shipping, tax, final_amount, items_count, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)`,
		o.Number, o.CustomerName, o.CustomerEmail, o.ShippingAddress, o.PaymentMethod,
		o.Subtotal.String(), o.Shipping.String(), o.Tax.String(), o.FinalAmount.String(), o.ItemsCount, o.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("order id: %w", err)
	}
	return id, nil
}

func isMySQLDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
