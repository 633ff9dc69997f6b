package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	mdb "github.com/modelyard/modelyard/pkg/db"
	kpgdir "github.com/modelyard/modelyard/pkg/db/postgres/directory"
	kpgdraft "github.com/modelyard/modelyard/pkg/db/postgres/draft"
	kpool "github.com/modelyard/modelyard/pkg/db/postgres/pool"
	kpgres "github.com/modelyard/modelyard/pkg/db/postgres/resource"
	kpgschema "github.com/modelyard/modelyard/pkg/db/postgres/schema"
	xe "github.com/modelyard/modelyard/pkg/errors"
)

type modelyardDBPostgres struct {
	pool      *pgxpool.Pool
	resources mdb.ResourceInterface
	drafts    mdb.DraftInterface
	schema    mdb.SchemaInterface
}

type Config struct {
	Directory        mdb.AccountDirectory
	Rules            mdb.DependencyRules
	SchemaRepository string
}

func DefaultConfig() Config {
	return Config{
		Rules: mdb.DefaultDependencyRules(),
	}
}

type Option func(*Config) *Config

// WithDirectory overrides the account directory used to verify users,
// groups and memberships. When not set, the directory is backed by the
// account tables in the same database.
func WithDirectory(directory mdb.AccountDirectory) Option {
	return func(c *Config) *Config {
		c.Directory = directory
		return c
	}
}

func WithDependencyRules(rules mdb.DependencyRules) Option {
	return func(c *Config) *Config {
		c.Rules = rules
		return c
	}
}

func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

func New(
	ctx context.Context,
	url string,
	options ...Option,
) (mdb.ModelyardDatabase, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	c := DefaultConfig()
	for _, option := range options {
		c = *option(&c)
	}

	p := kpool.Wrap(pool)

	directory := c.Directory
	if directory == nil {
		directory = kpgdir.New(p)
	}

	var schema mdb.SchemaInterface = kpgschema.Null()
	if c.SchemaRepository != "" {
		schema = kpgschema.New(p, c.SchemaRepository)
	}

	return &modelyardDBPostgres{
		pool:      pool,
		resources: kpgres.New(p, directory, kpgres.WithRules(c.Rules)),
		drafts:    kpgdraft.New(p, directory, kpgdraft.WithRules(c.Rules)),
		schema:    schema,
	}, nil
}

func (m *modelyardDBPostgres) Resources() mdb.ResourceInterface {
	return m.resources
}

func (m *modelyardDBPostgres) Drafts() mdb.DraftInterface {
	return m.drafts
}

func (m *modelyardDBPostgres) Schema() mdb.SchemaInterface {
	return m.schema
}

func (m *modelyardDBPostgres) Close() error {
	m.pool.Close()
	return nil
}
