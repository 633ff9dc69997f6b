package backend

import (
	"os"

	mdb "github.com/modelyard/modelyard/pkg/db"
)

// Configuration for the Modelyard backend.
//
// to get `BackendConfig` instance, use `TrySeal(BackendConfigMarshall)` .
type BackendConfig struct {
	database         string
	schemaRepository string
	dependencyRules  string
}

// Connection string for database.
func (c *BackendConfig) Database() string {
	return c.database
}

// Path to the schema repository directory. Empty when schema
// management is disabled.
func (c *BackendConfig) SchemaRepository() string {
	return c.schemaRepository
}

// Path to the dependency rules file. Empty when the built-in default
// rules are used.
func (c *BackendConfig) DependencyRules() string {
	return c.dependencyRules
}

// LoadDependencyRules reads the rule table named by DependencyRules().
//
// When no file is configured, the built-in default rules are returned.
func (c *BackendConfig) LoadDependencyRules() (mdb.DependencyRules, error) {
	if c.dependencyRules == "" {
		return mdb.DefaultDependencyRules(), nil
	}

	f, err := os.Open(c.dependencyRules)
	if err != nil {
		return mdb.DependencyRules{}, err
	}
	defer f.Close()

	return mdb.ReadDependencyRules(f)
}
