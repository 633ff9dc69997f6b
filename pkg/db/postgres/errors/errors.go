package errors

import (
	"fmt"

	mdb "github.com/modelyard/modelyard/pkg/db"
)

// requested record is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}
func (m Missing) Unwrap() error {
	return mdb.ErrMissing
}

// requested record exists but is tombstoned.
type Deleted struct {
	Table    string
	Identity string
}

var _ error = Deleted{}

func (d Deleted) Error() string {
	return fmt.Sprintf("%s in %s is deleted", d.Identity, d.Table)
}
func (d Deleted) Unwrap() error {
	return mdb.ErrDeleted
}

// a record with the same identity already exists.
type Conflict struct {
	Table    string
	Identity string
}

var _ error = Conflict{}

func (c Conflict) Error() string {
	return fmt.Sprintf("%s already exists in %s", c.Identity, c.Table)
}
func (c Conflict) Unwrap() error {
	return mdb.ErrConflict
}
