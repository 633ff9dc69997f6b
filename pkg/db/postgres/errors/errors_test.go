package errors_test

import (
	"errors"
	"testing"

	mdb "github.com/modelyard/modelyard/pkg/db"
	kpgerr "github.com/modelyard/modelyard/pkg/db/postgres/errors"
)

func TestErrorsUnwrap(t *testing.T) {
	for name, testcase := range map[string]struct {
		err      error
		sentinel error
	}{
		"Missing unwraps to ErrMissing": {
			err:      kpgerr.Missing{Table: "resource", Identity: "resource_id=1"},
			sentinel: mdb.ErrMissing,
		},
		"Deleted unwraps to ErrDeleted": {
			err:      kpgerr.Deleted{Table: "account", Identity: "user_id=1"},
			sentinel: mdb.ErrDeleted,
		},
		"Conflict unwraps to ErrConflict": {
			err:      kpgerr.Conflict{Table: "draft", Identity: "creator_id=1"},
			sentinel: mdb.ErrConflict,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if !errors.Is(testcase.err, testcase.sentinel) {
				t.Errorf("%v should unwrap to %v", testcase.err, testcase.sentinel)
			}
			if testcase.err.Error() == "" {
				t.Error("error message should not be empty")
			}
		})
	}
}
