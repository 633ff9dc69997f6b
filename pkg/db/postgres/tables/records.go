package tables

import (
	"time"

	mdb "github.com/modelyard/modelyard/pkg/db"
)

// golang representation of record of PostgresSQL tables
//
// some tables are omitted, because of its simpleness.

type Account struct {
	UserId   int64
	Username string
	Deleted  bool
}

type UserGroup struct {
	GroupId int64
	Name    string
	Deleted bool
}

type Membership struct {
	GroupId int64
	UserId  int64
}

type Resource struct {
	ResourceId   int64
	ResourceType mdb.ResourceType
	GroupId      int64
}

type Snapshot struct {
	SnapshotId   int64
	ResourceId   int64
	ResourceType mdb.ResourceType
	CreatorId    int64
	CreatedOn    time.Time // zero value means "now()"
	ResourceData mdb.ResourceData
}

func (a *Snapshot) Equal(b *Snapshot) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.SnapshotId == b.SnapshotId &&
		a.ResourceId == b.ResourceId &&
		a.ResourceType == b.ResourceType &&
		a.CreatorId == b.CreatorId &&
		a.CreatedOn.Equal(b.CreatedOn) &&
		a.ResourceData.Equal(b.ResourceData)
}

type Lock struct {
	ResourceId int64
	LockType   mdb.LockType
}

type Dependency struct {
	ParentId int64
	ChildId  int64
}

type Draft struct {
	DraftId        int64
	ResourceType   mdb.ResourceType
	GroupId        int64
	CreatorId      int64
	LastModifiedOn time.Time // zero value means "now()"
	Payload        mdb.DraftPayload
}
