package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelyard/modelyard/pkg/cmp"
)

var ErrUnknownResourceType = errors.New("unknown resource type")

// tag of a versionable entity.
type ResourceType string

const (
	TypeQueue         ResourceType = "queue"
	TypeExperiment    ResourceType = "experiment"
	TypeEntryPoint    ResourceType = "entry_point"
	TypeJob           ResourceType = "job"
	TypeArtifact      ResourceType = "artifact"
	TypePlugin        ResourceType = "plugin"
	TypePluginFile    ResourceType = "plugin_file"
	TypeParameterType ResourceType = "parameter_type"
	TypeModel         ResourceType = "model"
)

func (rt ResourceType) String() string {
	return string(rt)
}

func ResourceTypes() []ResourceType {
	return []ResourceType{
		TypeQueue, TypeExperiment, TypeEntryPoint, TypeJob, TypeArtifact,
		TypePlugin, TypePluginFile, TypeParameterType, TypeModel,
	}
}

func AsResourceType(s string) (ResourceType, error) {
	for _, rt := range ResourceTypes() {
		if ResourceType(s) == rt {
			return rt, nil
		}
	}
	return ResourceType(s), fmt.Errorf("%w: %s", ErrUnknownResourceType, s)
}

var ErrUnknownLockType = errors.New("unknown lock type")

// append-only tombstone/flag attached to a Resource.
type LockType string

const (
	// the resource is permanently inert.
	LockDelete LockType = "delete"

	// the resource rejects new snapshots and new drafts.
	LockReadonly LockType = "readonly"
)

func (lt LockType) String() string {
	return string(lt)
}

func AsLockType(s string) (LockType, error) {
	switch LockType(s) {
	case LockDelete:
		return LockDelete, nil
	case LockReadonly:
		return LockReadonly, nil
	default:
		return LockType(s), fmt.Errorf("%w: %s", ErrUnknownLockType, s)
	}
}

type Lock struct {
	ResourceId int64
	LockType   LockType
	CreatedOn  time.Time
}

func (l *Lock) Equal(other *Lock) bool {
	if l == nil || other == nil {
		return l == nil && other == nil
	}
	return l.ResourceId == other.ResourceId &&
		l.LockType == other.LockType &&
		l.CreatedOn.Equal(other.CreatedOn)
}

// filter on the deletion state of a Resource.
type DeletionPolicy string

const (
	Deleted    DeletionPolicy = "deleted"
	NotDeleted DeletionPolicy = "not_deleted"
	AnyState   DeletionPolicy = "any"
)

// the stable identity of a versionable entity.
//
// A Resource is created once and never physically removed;
// LatestSnapshotId moves on every edit, IsDeleted is derived from its Locks.
type ResourceBody struct {
	ResourceId       int64
	ResourceType     ResourceType
	GroupId          int64
	IsDeleted        bool
	IsReadonly       bool
	LatestSnapshotId int64
}

func (rb *ResourceBody) Equal(other *ResourceBody) bool {
	if rb == nil || other == nil {
		return rb == nil && other == nil
	}
	return *rb == *other
}

type Resource struct {
	ResourceBody
	Locks []Lock
}

func (r *Resource) Equal(other *Resource) bool {
	if r == nil || other == nil {
		return r == nil && other == nil
	}
	return r.ResourceBody.Equal(&other.ResourceBody) &&
		cmp.SliceContentEqWith(
			r.Locks, other.Locks,
			func(a, b Lock) bool { return a.Equal(&b) },
		)
}

// one immutable version of a Resource's data.
type Snapshot struct {
	SnapshotId   int64
	ResourceId   int64
	ResourceType ResourceType
	CreatorId    int64
	CreatedOn    time.Time
	Data         ResourceData
}

func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == nil && other == nil
	}
	return s.SnapshotId == other.SnapshotId &&
		s.ResourceId == other.ResourceId &&
		s.ResourceType == other.ResourceType &&
		s.CreatorId == other.CreatorId &&
		s.CreatedOn.Equal(other.CreatedOn) &&
		s.Data.Equal(other.Data)
}

// request to register a brand-new Resource with its first Snapshot.
type ResourceSpec struct {
	ResourceType ResourceType
	GroupId      int64
	CreatorId    int64
	Data         ResourceData

	// parent of the new resource, if any.
	BaseResourceId *int64
}

// request to append a Snapshot to an existing Resource.
type SnapshotSpec struct {
	CreatorId int64
	Data      ResourceData
}

type ResourceInterface interface {
	// Register creates a Resource and its first Snapshot.
	//
	// When spec.BaseResourceId is set, the base must exist, must not be
	// deleted, and (base type, spec type) must be a legal dependency pair;
	// a parent-child edge is recorded.
	//
	// Returns the created Resource with LatestSnapshotId pointing at the
	// first Snapshot.
	Register(ctx context.Context, spec ResourceSpec) (Resource, error)

	// Get retrieves Resources by id, filtered by deletion state.
	//
	// Ids which do not exist, or do not pass the policy, are absent from
	// the returned map.
	Get(ctx context.Context, resourceIds []int64, policy DeletionPolicy) (map[int64]Resource, error)

	// GetOne is Get for a single id; ErrMissing when absent or filtered out.
	GetOne(ctx context.Context, resourceId int64, policy DeletionPolicy) (Resource, error)

	// GetSnapshot retrieves a single Snapshot. ErrMissing when absent.
	GetSnapshot(ctx context.Context, snapshotId int64) (Snapshot, error)

	// History returns all Snapshots of a Resource, oldest first.
	//
	// ErrMissing when the resource does not exist (a deleted resource
	// keeps its history).
	History(ctx context.Context, resourceId int64) ([]Snapshot, error)

	// NewSnapshot appends an immutable Snapshot to a Resource and repoints
	// its LatestSnapshotId.
	//
	// ErrMissing when the resource does not exist, ErrDeleted when it is
	// tombstoned, ErrConflict when it is readonly-locked.
	NewSnapshot(ctx context.Context, resourceId int64, spec SnapshotSpec) (Snapshot, error)

	// Lock appends a Lock to a Resource.
	//
	// Locks are append-only; a second lock of the same type on the same
	// resource is ErrConflict. ErrMissing when the resource does not exist.
	Lock(ctx context.Context, resourceId int64, lockType LockType) (Lock, error)
}
