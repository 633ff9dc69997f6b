package internal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgtype"
	mdb "github.com/modelyard/modelyard/pkg/db"
	kpgerr "github.com/modelyard/modelyard/pkg/db/postgres/errors"
	kpool "github.com/modelyard/modelyard/pkg/db/postgres/pool"
)

// LockResource takes a row lock on a resource for the rest of the
// transaction. Locking a non-existent resource is not an error here;
// callers detect absence when they read the body.
func LockResource(ctx context.Context, tx kpool.Queryer, resourceId int64) error {
	rows, err := tx.Query(
		ctx,
		`select "resource_id" from "resource" where "resource_id" = $1 for update`,
		resourceId,
	)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

func MarshalResourceData(data mdb.ResourceData) (pgtype.JSONB, error) {
	if data == nil {
		data = mdb.ResourceData{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return pgtype.JSONB{}, err
	}
	return pgtype.JSONB{Bytes: b, Status: pgtype.Present}, nil
}

// RegisterResource creates a resource with its first snapshot and,
// when spec.BaseResourceId is set, validates and records the parent
// edge. It runs inside the caller's transaction and performs no commit.
func RegisterResource(
	ctx context.Context,
	tx kpool.Tx,
	spec mdb.ResourceSpec,
	rules mdb.DependencyRules,
) (mdb.Resource, error) {
	if spec.BaseResourceId != nil {
		baseId := *spec.BaseResourceId
		if err := LockResource(ctx, tx, baseId); err != nil {
			return mdb.Resource{}, err
		}

		// deletion state and type of the base, in one pass.
		bases, err := GetResourceBody(ctx, tx, []int64{baseId})
		if err != nil {
			return mdb.Resource{}, err
		}
		base, ok := bases[baseId]
		if !ok {
			return mdb.Resource{}, kpgerr.Missing{
				Table:    "resource",
				Identity: fmt.Sprintf("resource_id=%d", baseId),
			}
		}
		if base.IsDeleted {
			return mdb.Resource{}, kpgerr.Deleted{
				Table:    "resource",
				Identity: fmt.Sprintf("resource_id=%d", baseId),
			}
		}
		if !rules.Legal(base.ResourceType, spec.ResourceType) {
			return mdb.Resource{}, mdb.NewErrIllegalDependency(
				base.ResourceType, spec.ResourceType,
			)
		}
	}

	data, err := MarshalResourceData(spec.Data)
	if err != nil {
		return mdb.Resource{}, err
	}

	var resourceId int64
	if err := tx.QueryRow(
		ctx,
		`
		insert into "resource" ("resource_type", "group_id")
		values ($1::resourceType, $2)
		returning "resource_id"
		`,
		spec.ResourceType.String(), spec.GroupId,
	).Scan(&resourceId); err != nil {
		return mdb.Resource{}, err
	}

	snapshot, err := insertSnapshot(ctx, tx, resourceId, spec.ResourceType, spec.CreatorId, data)
	if err != nil {
		return mdb.Resource{}, err
	}

	if spec.BaseResourceId != nil {
		if _, err := tx.Exec(
			ctx,
			`insert into "resource_dependency" ("parent_id", "child_id") values ($1, $2)`,
			*spec.BaseResourceId, resourceId,
		); err != nil {
			return mdb.Resource{}, err
		}
	}

	return mdb.Resource{
		ResourceBody: mdb.ResourceBody{
			ResourceId:       resourceId,
			ResourceType:     spec.ResourceType,
			GroupId:          spec.GroupId,
			LatestSnapshotId: snapshot.SnapshotId,
		},
		Locks: []mdb.Lock{},
	}, nil
}

// AppendSnapshot writes a new immutable snapshot for an existing
// resource and repoints its latest snapshot. It runs inside the
// caller's transaction and performs no commit.
func AppendSnapshot(
	ctx context.Context,
	tx kpool.Tx,
	resourceId int64,
	spec mdb.SnapshotSpec,
) (mdb.Snapshot, error) {
	if err := LockResource(ctx, tx, resourceId); err != nil {
		return mdb.Snapshot{}, err
	}

	bodies, err := GetResourceBody(ctx, tx, []int64{resourceId})
	if err != nil {
		return mdb.Snapshot{}, err
	}
	body, ok := bodies[resourceId]
	if !ok {
		return mdb.Snapshot{}, kpgerr.Missing{
			Table:    "resource",
			Identity: fmt.Sprintf("resource_id=%d", resourceId),
		}
	}
	if body.IsDeleted {
		return mdb.Snapshot{}, kpgerr.Deleted{
			Table:    "resource",
			Identity: fmt.Sprintf("resource_id=%d", resourceId),
		}
	}
	if body.IsReadonly {
		return mdb.Snapshot{}, mdb.NewErrResourceReadonly(resourceId)
	}

	data, err := MarshalResourceData(spec.Data)
	if err != nil {
		return mdb.Snapshot{}, err
	}

	return insertSnapshot(ctx, tx, resourceId, body.ResourceType, spec.CreatorId, data)
}

func insertSnapshot(
	ctx context.Context,
	tx kpool.Tx,
	resourceId int64,
	resourceType mdb.ResourceType,
	creatorId int64,
	data pgtype.JSONB,
) (mdb.Snapshot, error) {
	s := mdb.Snapshot{ResourceId: resourceId, ResourceType: resourceType, CreatorId: creatorId}
	if err := tx.QueryRow(
		ctx,
		`
		with "new_snapshot" as (
			insert into "resource_snapshot"
				("resource_id", "resource_type", "creator_id", "resource_data")
			values ($1, $2::resourceType, $3, $4)
			returning "snapshot_id", "created_on"
		),
		"repoint" as (
			update "resource"
			set "latest_snapshot_id" = (select "snapshot_id" from "new_snapshot")
			where "resource_id" = $1
		)
		select "snapshot_id", "created_on" from "new_snapshot"
		`,
		resourceId, resourceType.String(), creatorId, data,
	).Scan(&s.SnapshotId, &s.CreatedOn); err != nil {
		return mdb.Snapshot{}, err
	}

	if err := json.Unmarshal(data.Bytes, &s.Data); err != nil {
		return mdb.Snapshot{}, err
	}
	return s, nil
}
