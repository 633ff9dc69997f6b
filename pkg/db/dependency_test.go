package db_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/modelyard/modelyard/pkg/cmp"
	mdb "github.com/modelyard/modelyard/pkg/db"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

func TestDefaultDependencyRules(t *testing.T) {
	rules := mdb.DefaultDependencyRules()

	legal := []struct{ parent, child mdb.ResourceType }{
		{mdb.TypeExperiment, mdb.TypeEntryPoint},
		{mdb.TypeEntryPoint, mdb.TypeJob},
		{mdb.TypeJob, mdb.TypeArtifact},
		{mdb.TypePlugin, mdb.TypePluginFile},
	}
	for _, pair := range legal {
		if !rules.Legal(pair.parent, pair.child) {
			t.Errorf("(%s, %s) should be legal", pair.parent, pair.child)
		}
	}

	illegal := []struct{ parent, child mdb.ResourceType }{
		{mdb.TypeExperiment, mdb.TypeJob}, // jobs attach to entry points, never directly
		{mdb.TypeEntryPoint, mdb.TypeExperiment},
		{mdb.TypeJob, mdb.TypeJob},
		{mdb.TypeModel, mdb.TypeArtifact},
		{mdb.TypeQueue, mdb.TypeExperiment},
	}
	for _, pair := range illegal {
		if rules.Legal(pair.parent, pair.child) {
			t.Errorf("(%s, %s) should be illegal", pair.parent, pair.child)
		}
	}
}

func TestNewDependencyRules(t *testing.T) {
	t.Run("it accepts known types", func(t *testing.T) {
		rules := try.To(mdb.NewDependencyRules(map[mdb.ResourceType][]mdb.ResourceType{
			mdb.TypeQueue: {mdb.TypeExperiment, mdb.TypeJob},
		})).OrFatal(t)

		if !rules.Legal(mdb.TypeQueue, mdb.TypeExperiment) {
			t.Error("(queue, experiment) should be legal")
		}
		if !cmp.SliceContentEq(
			rules.Children(mdb.TypeQueue),
			[]mdb.ResourceType{mdb.TypeExperiment, mdb.TypeJob},
		) {
			t.Errorf("children do not match: %v", rules.Children(mdb.TypeQueue))
		}
		if len(rules.Children(mdb.TypeModel)) != 0 {
			t.Error("model should have no children")
		}
	})

	t.Run("it rejects unknown parent type", func(t *testing.T) {
		_, err := mdb.NewDependencyRules(map[mdb.ResourceType][]mdb.ResourceType{
			"pipeline": {mdb.TypeJob},
		})
		if !errors.Is(err, mdb.ErrUnknownResourceType) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it rejects unknown child type", func(t *testing.T) {
		_, err := mdb.NewDependencyRules(map[mdb.ResourceType][]mdb.ResourceType{
			mdb.TypeExperiment: {"pipeline"},
		})
		if !errors.Is(err, mdb.ErrUnknownResourceType) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestReadDependencyRules(t *testing.T) {
	t.Run("it loads rules from yaml", func(t *testing.T) {
		rules := try.To(mdb.ReadDependencyRules(strings.NewReader(`
experiment:
  - entry_point
entry_point:
  - job
plugin:
  - plugin_file
`))).OrFatal(t)

		if !rules.Legal(mdb.TypeExperiment, mdb.TypeEntryPoint) {
			t.Error("(experiment, entry_point) should be legal")
		}
		if rules.Legal(mdb.TypeJob, mdb.TypeArtifact) {
			t.Error("(job, artifact) is not declared and should be illegal")
		}
	})

	t.Run("it rejects unknown types", func(t *testing.T) {
		_, err := mdb.ReadDependencyRules(strings.NewReader(`
experiment:
  - pipeline
`))
		if !errors.Is(err, mdb.ErrUnknownResourceType) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it rejects broken yaml", func(t *testing.T) {
		if _, err := mdb.ReadDependencyRules(strings.NewReader(`:"`)); err == nil {
			t.Error("broken yaml should be an error")
		}
	})
}
