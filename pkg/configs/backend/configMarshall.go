package backend

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/backend.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of the Modelyard backend.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `BackendConfig`.
// You can get `BackendConfig` instance with `TrySeal`.
type BackendConfigMarshall struct {
	Database         string `yaml:"database"`
	SchemaRepository string `yaml:"schemaRepository,omitempty"`
	DependencyRules  string `yaml:"dependencyRules,omitempty"`
}

var _ Marshalled[*BackendConfig] = &BackendConfigMarshall{}

func (b *BackendConfigMarshall) trySeal(path string) *BackendConfig {
	return &BackendConfig{
		database:         required(b.Database, path+".database"),
		schemaRepository: b.SchemaRepository,
		dependencyRules:  b.DependencyRules,
	}
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
