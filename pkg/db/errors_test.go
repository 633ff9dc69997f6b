package db_test

import (
	"errors"
	"testing"

	mdb "github.com/modelyard/modelyard/pkg/db"
)

func TestErrorConstructors(t *testing.T) {
	for name, testcase := range map[string]struct {
		err      error
		sentinel error
	}{
		"illegal dependency is an invalid relation": {
			err:      mdb.NewErrIllegalDependency(mdb.TypeExperiment, mdb.TypeJob),
			sentinel: mdb.ErrInvalidRelation,
		},
		"snapshot mismatch is an invalid relation": {
			err:      mdb.NewErrSnapshotMismatch(7, 42),
			sentinel: mdb.ErrInvalidRelation,
		},
		"ownership mismatch is an invalid relation": {
			err:      mdb.NewErrOwnershipMismatch(42, 10),
			sentinel: mdb.ErrInvalidRelation,
		},
		"re-pin on a resource draft is an invalid relation": {
			err:      mdb.NewErrModificationRequired(3),
			sentinel: mdb.ErrInvalidRelation,
		},
		"stale draft is an invalid relation": {
			err:      mdb.NewErrStaleDraft(3, 7, 9),
			sentinel: mdb.ErrInvalidRelation,
		},
		"readonly resource is a conflict": {
			err:      mdb.NewErrResourceReadonly(42),
			sentinel: mdb.ErrConflict,
		},
		"duplicate modification draft is a conflict": {
			err:      mdb.NewErrDraftExists(42, 100),
			sentinel: mdb.ErrConflict,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if !errors.Is(testcase.err, testcase.sentinel) {
				t.Errorf("%v should unwrap to %v", testcase.err, testcase.sentinel)
			}
		})
	}
}
