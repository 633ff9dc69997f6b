// shared row loaders used by the repository packages.
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

// persisted shape of the draft "payload" jsonb column.
//
// Exactly these four keys; anything reading or writing the blob outside
// the repository must preserve the shape.
type DraftPayload struct {
	ResourceData       mdb.ResourceData `json:"resource_data"`
	ResourceId         *int64           `json:"resource_id"`
	ResourceSnapshotId *int64           `json:"resource_snapshot_id"`
	BaseResourceId     *int64           `json:"base_resource_id"`
}

func MarshalDraftPayload(p mdb.DraftPayload) (pgtype.JSONB, error) {
	var record DraftPayload
	switch payload := p.(type) {
	case mdb.NewResource:
		record = DraftPayload{
			ResourceData:   payload.Data,
			BaseResourceId: payload.BaseResourceId,
		}
	case mdb.Modification:
		resourceId := payload.ResourceId
		snapshotId := payload.SnapshotId
		record = DraftPayload{
			ResourceData:       payload.Data,
			ResourceId:         &resourceId,
			ResourceSnapshotId: &snapshotId,
		}
	default:
		return pgtype.JSONB{}, fmt.Errorf("unsupported draft payload: %T", p)
	}

	b, err := json.Marshal(record)
	if err != nil {
		return pgtype.JSONB{}, err
	}
	return pgtype.JSONB{Bytes: b, Status: pgtype.Present}, nil
}

func (p DraftPayload) Model() (mdb.DraftPayload, error) {
	if p.ResourceId == nil {
		return mdb.NewResource{
			Data:           p.ResourceData,
			BaseResourceId: p.BaseResourceId,
		}, nil
	}
	if p.ResourceSnapshotId == nil {
		return nil, fmt.Errorf(
			"broken draft payload: resource_id=%d but no resource_snapshot_id",
			*p.ResourceId,
		)
	}
	return mdb.Modification{
		Data:       p.ResourceData,
		ResourceId: *p.ResourceId,
		SnapshotId: *p.ResourceSnapshotId,
	}, nil
}

// GetResourceBody loads resources by id with their deletion/readonly
// state derived from "resource_lock".
//
// Ids not pointing at actual resources are just absent from the result.
func GetResourceBody(
	ctx context.Context, conn kpool.Queryer, resourceIds []int64,
) (map[int64]mdb.ResourceBody, error) {
	if len(resourceIds) == 0 {
		return map[int64]mdb.ResourceBody{}, nil
	}

	rows, err := conn.Query(
		ctx,
		`
		select
			"resource_id", "resource_type", "group_id",
			coalesce("latest_snapshot_id", 0),
			coalesce(bool_or("lock_type" = 'delete'), false) as "is_deleted",
			coalesce(bool_or("lock_type" = 'readonly'), false) as "is_readonly"
		from "resource"
		left outer join "resource_lock" using("resource_id")
		where "resource_id" = any($1::bigint[])
		group by "resource_id", "resource_type", "group_id", "latest_snapshot_id"
		`,
		resourceIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bodies := map[int64]mdb.ResourceBody{}
	for rows.Next() {
		var b mdb.ResourceBody
		var typ string
		if err := rows.Scan(
			&b.ResourceId, &typ, &b.GroupId,
			&b.LatestSnapshotId, &b.IsDeleted, &b.IsReadonly,
		); err != nil {
			return nil, err
		}
		rt, err := mdb.AsResourceType(typ)
		if err != nil {
			return nil, err
		}
		b.ResourceType = rt
		bodies[b.ResourceId] = b
	}
	return bodies, nil
}

// GetLocks loads all locks of the resources, grouped by resource id.
func GetLocks(
	ctx context.Context, conn kpool.Queryer, resourceIds []int64,
) (map[int64][]mdb.Lock, error) {
	if len(resourceIds) == 0 {
		return map[int64][]mdb.Lock{}, nil
	}

	rows, err := conn.Query(
		ctx,
		`
		select "resource_id", "lock_type", "created_on"
		from "resource_lock"
		where "resource_id" = any($1::bigint[])
		order by "created_on"
		`,
		resourceIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locks := map[int64][]mdb.Lock{}
	for rows.Next() {
		var l mdb.Lock
		var typ string
		if err := rows.Scan(&l.ResourceId, &typ, &l.CreatedOn); err != nil {
			return nil, err
		}
		lt, err := mdb.AsLockType(typ)
		if err != nil {
			return nil, err
		}
		l.LockType = lt
		locks[l.ResourceId] = append(locks[l.ResourceId], l)
	}
	return locks, nil
}

// GetSnapshotBody loads snapshots by id, including their data blob.
func GetSnapshotBody(
	ctx context.Context, conn kpool.Queryer, snapshotIds []int64,
) (map[int64]mdb.Snapshot, error) {
	if len(snapshotIds) == 0 {
		return map[int64]mdb.Snapshot{}, nil
	}

	rows, err := conn.Query(
		ctx,
		`
		select
			"snapshot_id", "resource_id", "resource_type",
			"creator_id", "created_on", "resource_data"
		from "resource_snapshot"
		where "snapshot_id" = any($1::bigint[])
		`,
		snapshotIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := map[int64]mdb.Snapshot{}
	for rows.Next() {
		var s mdb.Snapshot
		var typ string
		var data pgtype.JSONB
		if err := rows.Scan(
			&s.SnapshotId, &s.ResourceId, &typ,
			&s.CreatorId, &s.CreatedOn, &data,
		); err != nil {
			return nil, err
		}
		rt, err := mdb.AsResourceType(typ)
		if err != nil {
			return nil, err
		}
		s.ResourceType = rt
		if data.Status == pgtype.Present {
			if err := json.Unmarshal(data.Bytes, &s.Data); err != nil {
				return nil, err
			}
		}
		snapshots[s.SnapshotId] = s
	}
	return snapshots, nil
}

// GetSnapshotOne is GetSnapshotBody for a single id; Missing when absent.
func GetSnapshotOne(
	ctx context.Context, conn kpool.Queryer, snapshotId int64,
) (mdb.Snapshot, error) {
	snapshots, err := GetSnapshotBody(ctx, conn, []int64{snapshotId})
	if err != nil {
		return mdb.Snapshot{}, err
	}
	s, ok := snapshots[snapshotId]
	if !ok {
		return mdb.Snapshot{}, kpgerr.Missing{
			Table:    "resource_snapshot",
			Identity: fmt.Sprintf("snapshot_id=%d", snapshotId),
		}
	}
	return s, nil
}

// GetDraftBody loads drafts by id, decoding the payload blob into
// the draft payload sum type.
func GetDraftBody(
	ctx context.Context, conn kpool.Queryer, draftIds []int64,
) (map[int64]mdb.Draft, error) {
	if len(draftIds) == 0 {
		return map[int64]mdb.Draft{}, nil
	}

	rows, err := conn.Query(
		ctx,
		`
		select
			"draft_id", "resource_type", "group_id",
			"creator_id", "last_modified_on", "payload"
		from "draft"
		where "draft_id" = any($1::bigint[])
		`,
		draftIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drafts := map[int64]mdb.Draft{}
	for rows.Next() {
		var d mdb.Draft
		var typ string
		var payload pgtype.JSONB
		if err := rows.Scan(
			&d.DraftId, &typ, &d.GroupId,
			&d.CreatorId, &d.LastModifiedOn, &payload,
		); err != nil {
			return nil, err
		}
		rt, err := mdb.AsResourceType(typ)
		if err != nil {
			return nil, err
		}
		d.ResourceType = rt

		var record DraftPayload
		if err := json.Unmarshal(payload.Bytes, &record); err != nil {
			return nil, err
		}
		p, err := record.Model()
		if err != nil {
			return nil, err
		}
		d.Payload = p

		drafts[d.DraftId] = d
	}
	return drafts, nil
}
