package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Transaction is an explicit batch of operations. Pass it to operations with
// WithTransaction; they run inside it and leave commit or rollback to the caller.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type sqlTransaction struct {
	Tx     *sqlx.Tx
	client *Client
}

func (st *sqlTransaction) Rollback(_ context.Context) error {
	if err := st.Tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return st.client.classify("rollback", "", err)
	}
	return nil
}

func (st *sqlTransaction) Commit(_ context.Context) error {
	if err := st.Tx.Commit(); err != nil {
		return st.client.classify("commit", "", err)
	}
	return nil
}

// Begin starts an explicit transaction. The client holds a single connection, so
// while the transaction is open every operation must be given WithTransaction;
// operations without it wait for the connection until their timeout expires.
func (c *Client) Begin(ctx context.Context) (Transaction, error) {
	const op = "begin"
	release, err := c.acquire(op, "")
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, c.classify(op, "", err)
	}

	return &sqlTransaction{Tx: tx, client: c}, nil
}

// createTransaction returns the caller's transaction, or a new one the caller of
// createTransaction owns.
func (c *Client) createTransaction(ctx context.Context, opt *queryOption) (tx *sqlx.Tx, owned bool, err error) {
	if opt.Tx != nil {
		st, ok := opt.Tx.(*sqlTransaction)
		if !ok || st.client != c {
			return nil, false, validationErrorf("begin", "", "transaction was not started by this client")
		}
		return st.Tx, false, nil
	}

	tx, err = c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	return tx, true, nil
}
