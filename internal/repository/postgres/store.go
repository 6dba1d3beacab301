// Package postgres is the PostgreSQL storage backend. Review mutations lock
// the owning business row with SELECT ... FOR UPDATE inside a transaction.
package postgres

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yelpclone/directory/pkg/database"

	"github.com/yelpclone/directory/internal/repository"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations, rooted so that
// database.RunMigrations finds the *.up.sql files.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Pool is satisfied by *pgxpool.Pool and by pgxmock pools.
type Pool interface {
	database.Pool
	Ping(ctx context.Context) error
	Close()
}

// NewStore wires the Postgres repositories over pool.
func NewStore(pool Pool) *repository.Store {
	return &repository.Store{
		Businesses: NewBusinessRepository(pool),
		Reviews:    NewReviewRepository(pool),
		Tx:         NewTransactor(pool),
		Ping:       pool.Ping,
		Close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}
}

// Transactor implements repository.Transactor with database.WithinTransaction.
type Transactor struct {
	pool database.Pool
}

// NewTransactor creates a Transactor over pool.
func NewTransactor(pool database.Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithinTransaction(ctx, t.pool, fn)
}

// conn returns the transaction in ctx or the pool, with every statement
// traced.
func conn(ctx context.Context, pool database.Pool) database.DBTX {
	return tracedConn{db: database.Conn(ctx, pool)}
}

type tracedConn struct {
	db database.DBTX
}

func (c tracedConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, end := database.TraceQuery(ctx, verb(sql), sql)
	tag, err := c.db.Exec(ctx, sql, args...)
	end(err)
	return tag, err
}

func (c tracedConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, end := database.TraceQuery(ctx, verb(sql), sql)
	rows, err := c.db.Query(ctx, sql, args...)
	end(err)
	return rows, err
}

func (c tracedConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, end := database.TraceQuery(ctx, verb(sql), sql)
	return tracedRow{row: c.db.QueryRow(ctx, sql, args...), end: end}
}

// tracedRow ends the span when the row is scanned, since QueryRow defers
// execution errors until then. A missing row is not a span error.
type tracedRow struct {
	row pgx.Row
	end func(error)
}

func (r tracedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		r.end(nil)
	} else {
		r.end(err)
	}
	return err
}

func verb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToUpper(fields[0])
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
