package testhelpers

import (
	"context"
	"time"

	kpool "github.com/modelyard/modelyard/pkg/db/postgres/pool"
)

// get current timestamp in postgres.
func PGNow(ctx context.Context, conn kpool.Queryer) (time.Time, error) {
	var now time.Time
	err := conn.QueryRow(ctx, `select now()`).Scan(&now)
	if err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// like pgpool.Pool.BeginFunc, but always rollback transaction.
//
// # params:
//
// - ctx context.Context
//
// - pool kpg.Pool : connection pool where new transaction begins from.
//
// - f func(kpg.Tx) error : called with a new transaction to be rollbacked.
//
// # returns:
//
// - error : caused by pool.Begin or f.
func BeginFuncToRollback(ctx context.Context, pool kpool.Pool, f func(kpool.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	return f(tx)
}
