package db

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// the static table of legal (parent type, child type) pairs.
//
// The repository consults it when validating base resources and
// parent-child edges; it is maintained outside the repository and
// loaded at wiring time.
type DependencyRules struct {
	children map[ResourceType][]ResourceType
}

// Legal reports whether parent may own a child of the given type.
func (r DependencyRules) Legal(parent ResourceType, child ResourceType) bool {
	for _, c := range r.children[parent] {
		if c == child {
			return true
		}
	}
	return false
}

// Children returns the child types parent may legally own.
func (r DependencyRules) Children(parent ResourceType) []ResourceType {
	cs := make([]ResourceType, len(r.children[parent]))
	copy(cs, r.children[parent])
	return cs
}

func NewDependencyRules(pairs map[ResourceType][]ResourceType) (DependencyRules, error) {
	children := map[ResourceType][]ResourceType{}
	for parent, cs := range pairs {
		if _, err := AsResourceType(parent.String()); err != nil {
			return DependencyRules{}, err
		}
		for _, c := range cs {
			if _, err := AsResourceType(c.String()); err != nil {
				return DependencyRules{}, err
			}
			children[parent] = append(children[parent], c)
		}
	}
	return DependencyRules{children: children}, nil
}

// the rules shipped with the platform.
//
// Experiments own entry points, entry points own the jobs submitted
// through them (jobs never attach to an experiment directly),
// jobs own the artifacts they produce, plugins own their files.
func DefaultDependencyRules() DependencyRules {
	return DependencyRules{
		children: map[ResourceType][]ResourceType{
			TypeExperiment: {TypeEntryPoint},
			TypeEntryPoint: {TypeJob},
			TypeJob:        {TypeArtifact},
			TypePlugin:     {TypePluginFile},
		},
	}
}

// ReadDependencyRules loads a rule table from YAML shaped as
//
//	experiment:
//	  - entry_point
//	plugin:
//	  - plugin_file
func ReadDependencyRules(r io.Reader) (DependencyRules, error) {
	raw := map[string][]string{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return DependencyRules{}, fmt.Errorf("cannot read dependency rules: %w", err)
	}

	pairs := map[ResourceType][]ResourceType{}
	for parent, cs := range raw {
		p, err := AsResourceType(parent)
		if err != nil {
			return DependencyRules{}, err
		}
		for _, child := range cs {
			c, err := AsResourceType(child)
			if err != nil {
				return DependencyRules{}, err
			}
			pairs[p] = append(pairs[p], c)
		}
	}
	return NewDependencyRules(pairs)
}
