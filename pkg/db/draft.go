package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/modelyard/modelyard/pkg/cmp"
)

// opaque JSON document carried by Snapshots and Drafts.
//
// The repository stores and returns it as-is; it never inspects keys.
type ResourceData map[string]interface{}

func (d ResourceData) Equal(other ResourceData) bool {
	if len(d) != len(other) {
		return false
	}
	return reflect.DeepEqual(d, other)
}

var ErrUnknownDraftKind = errors.New("unknown draft kind")

// selector over the two Draft variants.
type DraftKind string

const (
	KindAny          DraftKind = "any"
	KindResource     DraftKind = "resource"
	KindModification DraftKind = "modification"
)

func (k DraftKind) String() string {
	return string(k)
}

func AsDraftKind(s string) (DraftKind, error) {
	switch DraftKind(s) {
	case KindAny:
		return KindAny, nil
	case KindResource:
		return KindResource, nil
	case KindModification:
		return KindModification, nil
	default:
		return DraftKind(s), fmt.Errorf("%w: %s", ErrUnknownDraftKind, s)
	}
}

// the variant-specific part of a Draft.
//
// Exactly two types implement it: NewResource and Modification.
// A modification without a target resource is unrepresentable.
type DraftPayload interface {
	Kind() DraftKind
	ResourceData() ResourceData
	Equal(DraftPayload) bool

	draftPayload()
}

// payload of a draft proposing a brand-new Resource.
type NewResource struct {
	Data ResourceData

	// Resource which will become the new entity's parent once committed.
	BaseResourceId *int64
}

func (NewResource) draftPayload() {}

func (NewResource) Kind() DraftKind {
	return KindResource
}

func (p NewResource) ResourceData() ResourceData {
	return p.Data
}

func (p NewResource) Equal(other DraftPayload) bool {
	o, ok := other.(NewResource)
	if !ok {
		return false
	}
	return p.Data.Equal(o.Data) && cmp.PEqEq(p.BaseResourceId, o.BaseResourceId)
}

// payload of a draft proposing a new Snapshot of an existing Resource.
type Modification struct {
	Data ResourceData

	// Resource under modification.
	ResourceId int64

	// Snapshot of ResourceId which the draft was branched from.
	SnapshotId int64
}

func (Modification) draftPayload() {}

func (Modification) Kind() DraftKind {
	return KindModification
}

func (p Modification) ResourceData() ResourceData {
	return p.Data
}

func (p Modification) Equal(other DraftPayload) bool {
	o, ok := other.(Modification)
	if !ok {
		return false
	}
	return p.Data.Equal(o.Data) &&
		p.ResourceId == o.ResourceId &&
		p.SnapshotId == o.SnapshotId
}

// an uncommitted, user-scoped proposal.
type Draft struct {
	DraftId        int64
	ResourceType   ResourceType
	GroupId        int64
	CreatorId      int64
	LastModifiedOn time.Time
	Payload        DraftPayload
}

func (d *Draft) Equal(other *Draft) bool {
	if d == nil || other == nil {
		return d == nil && other == nil
	}
	return d.DraftId == other.DraftId &&
		d.ResourceType == other.ResourceType &&
		d.GroupId == other.GroupId &&
		d.CreatorId == other.CreatorId &&
		d.LastModifiedOn.Equal(other.LastModifiedOn) &&
		d.Payload.Equal(other.Payload)
}

// request to create a draft proposing a new Resource.
type ResourceDraftSpec struct {
	ResourceType   ResourceType
	GroupId        int64
	CreatorId      int64
	Data           ResourceData
	BaseResourceId *int64
}

// request to create a draft proposing a new Snapshot of an existing Resource.
//
// The draft's resource type is taken from the target resource.
type ModificationDraftSpec struct {
	GroupId    int64
	CreatorId  int64
	Data       ResourceData
	ResourceId int64
	SnapshotId int64
}

// visibility filter for Get/GetOne.
//
// A draft whose type or creator does not match appears absent,
// so scoped callers cannot probe for existence.
type DraftFilter struct {
	ResourceType ResourceType // zero value: any type
	CreatorId    *int64       // nil: any creator
}

func (f DraftFilter) Matches(d *Draft) bool {
	if f.ResourceType != "" && d.ResourceType != f.ResourceType {
		return false
	}
	if f.CreatorId != nil && d.CreatorId != *f.CreatorId {
		return false
	}
	return true
}

// query for Find.
type DraftFindQuery struct {
	Kind         DraftKind
	CreatorId    int64
	ResourceType ResourceType

	GroupId        *int64 // nil: any group
	BaseResourceId *int64 // nil: any base resource

	// paging window over drafts ordered by draft id.
	// Limit <= 0 means unbounded.
	Offset int64
	Limit  int64
}

// request to update a draft.
type DraftUpdate struct {
	Data ResourceData

	// new snapshot to pin a modification draft to. nil keeps the pin.
	SnapshotId *int64
}

type DraftInterface interface {
	// CreateResourceDraft persists a draft proposing a new Resource.
	//
	// Preconditions: the group exists and is not deleted; the creator
	// exists, is not deleted and is a member of the group. When
	// spec.BaseResourceId is set, the base resource must exist
	// (ErrMissing), must not be deleted (ErrDeleted), and
	// (base type, spec type) must be a declared-legal dependency pair
	// (ErrInvalidRelation).
	CreateResourceDraft(ctx context.Context, spec ResourceDraftSpec) (Draft, error)

	// CreateModificationDraft persists a draft proposing a new Snapshot.
	//
	// Beyond the creator/group preconditions of CreateResourceDraft:
	// the target resource must exist and not be deleted nor readonly;
	// the snapshot must exist and belong to the target resource
	// (ErrInvalidRelation otherwise); spec.GroupId must equal the target
	// resource's owning group (ErrInvalidRelation); and the creator must
	// not already hold a modification draft of that resource; duplicates
	// fail with ErrConflict, first wins.
	CreateModificationDraft(ctx context.Context, spec ModificationDraftSpec) (Draft, error)

	// Get retrieves a draft by id.
	//
	// ok is false when the draft does not exist or does not pass filter.
	Get(ctx context.Context, draftId int64, filter DraftFilter) (d Draft, ok bool, err error)

	// GetOne is Get, but absent drafts are ErrMissing.
	GetOne(ctx context.Context, draftId int64, filter DraftFilter) (Draft, error)

	// GetModificationByUser finds the modification draft of a resource
	// created by a user. At most one can exist.
	GetModificationByUser(ctx context.Context, userId int64, resourceId int64) (d Draft, ok bool, err error)

	// CountModifications counts drafts modifying a resource,
	// optionally excluding one user's own draft.
	CountModifications(ctx context.Context, resourceId int64, exceptUserId *int64) (int64, error)

	// Find returns one page of drafts matching query, ordered by draft id,
	// and the total number of matches disregarding the paging window.
	Find(ctx context.Context, query DraftFindQuery) ([]Draft, int64, error)

	// Update replaces the draft's resource data and refreshes its
	// last-modified timestamp.
	//
	// When update.SnapshotId is set, the draft must be a modification
	// (ErrInvalidRelation on a resource draft) and the new snapshot must
	// belong to the same resource as the current pin (ErrInvalidRelation
	// otherwise; ErrMissing when the snapshot does not exist).
	Update(ctx context.Context, draftId int64, update DraftUpdate) (Draft, error)

	// Delete removes a draft. ErrMissing when it does not exist.
	Delete(ctx context.Context, draftId int64) error

	// HasModifications returns the subset of resourceIds having at least
	// one modification draft, sorted ascending. userId narrows the probe
	// to one creator.
	HasModifications(ctx context.Context, resourceIds []int64, userId *int64) ([]int64, error)

	// HasModification is the single-resource form of HasModifications.
	HasModification(ctx context.Context, resourceId int64, userId *int64) (bool, error)

	// Promote commits a draft in one transaction: a resource draft becomes
	// a new Resource with its first Snapshot (and parent edge, if based),
	// a modification draft becomes a new latest Snapshot of its resource.
	// The draft row is deleted.
	//
	// A modification pinned to a snapshot which is no longer the latest is
	// refused with ErrInvalidRelation; the caller must re-pin via Update.
	Promote(ctx context.Context, draftId int64) (Resource, error)
}
