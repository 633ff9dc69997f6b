package db

import "context"

// oracle over users, groups and memberships.
//
// The drafts repository does not own accounts; it asks this interface
// and trusts the answers. A default PostgreSQL implementation lives in
// pkg/db/postgres/directory, but the embedding application may supply
// its own.
type AccountDirectory interface {
	// AssertUserExists returns nil when the user exists and is not
	// deleted; ErrMissing or ErrDeleted otherwise.
	AssertUserExists(ctx context.Context, userId int64) error

	// AssertGroupExists returns nil when the group exists and is not
	// deleted; ErrMissing or ErrDeleted otherwise.
	AssertGroupExists(ctx context.Context, groupId int64) error

	// AssertUserInGroup returns nil when the user is a member of the
	// group; ErrNotMember otherwise. Existence and deletion of both
	// sides should be asserted separately.
	AssertUserInGroup(ctx context.Context, userId int64, groupId int64) error
}
