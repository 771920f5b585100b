package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits an existing primary or unique key.
	ErrDuplicate = errors.New("duplicate key")
)

const mysqlErrDupEntry = 1062

// Transactor runs fn as one unit of work. Repositories called with the ctx handed to fn
// join that unit of work; fn returning an error discards every write made through it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// TxFromContext returns the transaction opened by WithinTx, if any.
func TxFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok
}

// SQLTransactor opens MySQL transactions.
type SQLTransactor struct {
	db *sqlx.DB
}

func NewTransactor(db *sqlx.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

var _ Transactor = (*SQLTransactor)(nil)

// WithinTx starts a transaction, or joins the one already carried by ctx.
func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// conn is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type conn interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// connFrom returns the transaction carried by ctx, falling back to db.
func connFrom(ctx context.Context, db *sqlx.DB) conn {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlErrDupEntry {
		return ErrDuplicate
	}
	return err
}
