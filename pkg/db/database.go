package db

type ModelyardDatabase interface {
	Resources() ResourceInterface
	Drafts() DraftInterface
	Schema() SchemaInterface
	Close() error
}
