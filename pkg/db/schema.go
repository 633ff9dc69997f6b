package db

import "context"

type SchemaInterface interface {
	// Version returns the schema version recorded in the database.
	// 0 means the database has never been initialized.
	Version(ctx context.Context) (int, error)

	// Upgrade applies schema definitions newer than the recorded version.
	Upgrade(ctx context.Context) error

	// Context derives a context which is cancelled when the database
	// schema falls behind the schema repository on disk.
	Context(ctx context.Context) (context.Context, context.CancelFunc)
}
