package testenv

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/modelyard/modelyard/pkg/db/postgres/pool"
)

// ENV_POSTGRES names the environment variable holding the DSN of the
// postgres instance used by integration tests. Tests needing a database
// are skipped when it is not set.
const ENV_POSTGRES = "MODELYARD_TEST_POSTGRES"

type pg struct {
	pool *pgxpool.Pool
}

func (p *pg) GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Cleanup(func() {
		t.Helper()
		ClearTables(ctx, p.pool, t)
	})

	ClearTables(ctx, p.pool, t)
	return kpool.Wrap(p.pool)
}

type pgNoClean struct {
	pool *pgxpool.Pool
}

func (p *pgNoClean) GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	return kpool.Wrap(p.pool)
}

// PoolBroaker is a interface to get a pool.
type PoolBroaker interface {
	// GetPool returns a pool.
	//
	// Tables are cleaned up before returning and after t.
	GetPool(ctx context.Context, t *testing.T) kpool.Pool
}

type pgConnOptions struct {
	DoNotCleanup bool
}

type PgConnOption func(*pgConnOptions) *pgConnOptions

func WithDoNotCleanup() PgConnOption {
	return func(o *pgConnOptions) *pgConnOptions {
		o.DoNotCleanup = true
		return o
	}
}

// NewPoolBroaker returns a PoolBroaker connected to the database named
// by the MODELYARD_TEST_POSTGRES environment variable.
//
// The test is skipped when the variable is not set. The schema is
// assumed to be applied already (run cmd/schema_upgrader beforehand).
//
// # Args
//
// - ctx: When this context is canceled, the database connection behind
// the pool will be lost.
//
// - t: scope of the PoolBroaker.
// When this test is finished, the broaker will be shutdown.
func NewPoolBroaker(ctx context.Context, t *testing.T, options ...PgConnOption) PoolBroaker {
	t.Helper()

	dsn := os.Getenv(ENV_POSTGRES)
	if dsn == "" {
		t.Skipf("skipped: %s is not set", ENV_POSTGRES)
	}

	opts := &pgConnOptions{}
	for _, o := range options {
		opts = o(opts)
	}

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if opts.DoNotCleanup {
		return &pgNoClean{pool: pool}
	} else {
		return &pg{pool: pool}
	}
}

func ClearTables(ctx context.Context, p *pgxpool.Pool, t *testing.T) {
	t.Helper()

	conn, err := p.Acquire(ctx)
	if err != nil {
		t.Errorf("fail to clean-up tables.: %v", err)
		return
	}
	defer conn.Release()

	for _, command := range []string{
		`truncate "draft" RESTART IDENTITY cascade`,
		`truncate "resource" RESTART IDENTITY cascade`,
		`truncate "user_group" RESTART IDENTITY cascade`,
		`truncate "account" RESTART IDENTITY cascade`,
		// by cascade, all row in tables should be deleted.
	} {
		_, err = conn.Exec(ctx, command)
		if err != nil {
			t.Errorf("fail to clean-up tables.: %v", err)
		}
	}
}
