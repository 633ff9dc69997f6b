package db

import (
	"errors"
	"fmt"
)

var (
	// a referenced entity (draft, resource, snapshot, user or group) does not exist.
	ErrMissing = errors.New("missing entity")

	// a referenced entity exists but is tombstoned.
	ErrDeleted = errors.New("deleted entity")

	// the acting user is not a member of the target group.
	ErrNotMember = errors.New("not a member of the group")

	// a record with the same identity already exists.
	ErrConflict = errors.New("conflicting entity")

	// entities are related in a way the data model forbids.
	ErrInvalidRelation = errors.New("invalid relationship")
)

// the base resource type may not parent the draft's resource type.
func NewErrIllegalDependency(parent ResourceType, child ResourceType) error {
	return fmt.Errorf(
		"%w: resource type %s may not be a parent of %s",
		ErrInvalidRelation, parent, child,
	)
}

// the snapshot does not belong to the resource it is claimed to belong to.
func NewErrSnapshotMismatch(snapshotId int64, resourceId int64) error {
	return fmt.Errorf(
		"%w: snapshot %d does not belong to resource %d",
		ErrInvalidRelation, snapshotId, resourceId,
	)
}

// a modification draft names a group other than the owner of the resource it modifies.
func NewErrOwnershipMismatch(resourceId int64, groupId int64) error {
	return fmt.Errorf(
		"%w: resource %d is not owned by group %d",
		ErrInvalidRelation, resourceId, groupId,
	)
}

// a snapshot re-pin was attempted on a draft which is not a modification.
func NewErrModificationRequired(draftId int64) error {
	return fmt.Errorf(
		"%w: draft %d proposes a new resource and has no snapshot to re-pin",
		ErrInvalidRelation, draftId,
	)
}

// the draft is pinned to a snapshot which is no longer the latest.
func NewErrStaleDraft(draftId int64, pinnedSnapshotId int64, latestSnapshotId int64) error {
	return fmt.Errorf(
		"%w: draft %d is pinned to snapshot %d but the latest is %d",
		ErrInvalidRelation, draftId, pinnedSnapshotId, latestSnapshotId,
	)
}

// the resource is readonly-locked and rejects new snapshots and drafts.
func NewErrResourceReadonly(resourceId int64) error {
	return fmt.Errorf("%w: resource %d is readonly", ErrConflict, resourceId)
}

// the user already holds a modification draft of the resource.
func NewErrDraftExists(resourceId int64, userId int64) error {
	return fmt.Errorf(
		"%w: user %d already has a modification draft of resource %d",
		ErrConflict, userId, resourceId,
	)
}
