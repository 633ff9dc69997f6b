package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	pgerrcode "github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	mdb "github.com/modelyard/modelyard/pkg/db"
	kpgerr "github.com/modelyard/modelyard/pkg/db/postgres/errors"
	kpgintr "github.com/modelyard/modelyard/pkg/db/postgres/internal"
	kpool "github.com/modelyard/modelyard/pkg/db/postgres/pool"
	"github.com/modelyard/modelyard/pkg/utils"
)

type draftPG struct { // implements mdb.DraftInterface
	pool      kpool.Pool
	directory mdb.AccountDirectory
	rules     mdb.DependencyRules
}

type Option func(*draftPG) *draftPG

func WithRules(rules mdb.DependencyRules) Option {
	return func(d *draftPG) *draftPG {
		d.rules = rules
		return d
	}
}

// args:
//   - pool: connection pool used to query/exec SQL
//   - directory: oracle over users, groups and memberships
func New(pool kpool.Pool, directory mdb.AccountDirectory, option ...Option) *draftPG {
	d := &draftPG{
		pool:      pool,
		directory: directory,
		rules:     mdb.DefaultDependencyRules(),
	}
	for _, opt := range option {
		d = opt(d)
	}
	return d
}

// common preconditions of both create operations:
// the target group and the creator exist, are not deleted,
// and the creator is a member of the group.
func (d *draftPG) assertCreator(ctx context.Context, creatorId int64, groupId int64) error {
	if err := d.directory.AssertGroupExists(ctx, groupId); err != nil {
		return err
	}
	if err := d.directory.AssertUserExists(ctx, creatorId); err != nil {
		return err
	}
	return d.directory.AssertUserInGroup(ctx, creatorId, groupId)
}

func (d *draftPG) CreateResourceDraft(
	ctx context.Context, spec mdb.ResourceDraftSpec,
) (mdb.Draft, error) {
	if _, err := mdb.AsResourceType(spec.ResourceType.String()); err != nil {
		return mdb.Draft{}, err
	}
	if err := d.assertCreator(ctx, spec.CreatorId, spec.GroupId); err != nil {
		return mdb.Draft{}, err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return mdb.Draft{}, err
	}
	defer tx.Rollback(ctx)

	if spec.BaseResourceId != nil {
		baseId := *spec.BaseResourceId

		// deletion state and type of the base resource, in one pass.
		bases, err := kpgintr.GetResourceBody(ctx, tx, []int64{baseId})
		if err != nil {
			return mdb.Draft{}, err
		}
		base, ok := bases[baseId]
		if !ok {
			return mdb.Draft{}, kpgerr.Missing{
				Table:    "resource",
				Identity: fmt.Sprintf("resource_id=%d", baseId),
			}
		}
		if base.IsDeleted {
			return mdb.Draft{}, kpgerr.Deleted{
				Table:    "resource",
				Identity: fmt.Sprintf("resource_id=%d", baseId),
			}
		}
		if !d.rules.Legal(base.ResourceType, spec.ResourceType) {
			return mdb.Draft{}, mdb.NewErrIllegalDependency(
				base.ResourceType, spec.ResourceType,
			)
		}
	}

	draft := mdb.Draft{
		ResourceType: spec.ResourceType,
		GroupId:      spec.GroupId,
		CreatorId:    spec.CreatorId,
		Payload: mdb.NewResource{
			Data:           spec.Data,
			BaseResourceId: spec.BaseResourceId,
		},
	}

	created, err := insertDraft(ctx, tx, draft)
	if err != nil {
		return mdb.Draft{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return mdb.Draft{}, err
	}
	return created, nil
}

func (d *draftPG) CreateModificationDraft(
	ctx context.Context, spec mdb.ModificationDraftSpec,
) (mdb.Draft, error) {
	if err := d.assertCreator(ctx, spec.CreatorId, spec.GroupId); err != nil {
		return mdb.Draft{}, err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return mdb.Draft{}, err
	}
	defer tx.Rollback(ctx)

	if err := kpgintr.LockResource(ctx, tx, spec.ResourceId); err != nil {
		return mdb.Draft{}, err
	}

	bodies, err := kpgintr.GetResourceBody(ctx, tx, []int64{spec.ResourceId})
	if err != nil {
		return mdb.Draft{}, err
	}
	body, ok := bodies[spec.ResourceId]
	if !ok {
		return mdb.Draft{}, kpgerr.Missing{
			Table:    "resource",
			Identity: fmt.Sprintf("resource_id=%d", spec.ResourceId),
		}
	}
	if body.IsDeleted {
		return mdb.Draft{}, kpgerr.Deleted{
			Table:    "resource",
			Identity: fmt.Sprintf("resource_id=%d", spec.ResourceId),
		}
	}
	if body.IsReadonly {
		return mdb.Draft{}, mdb.NewErrResourceReadonly(spec.ResourceId)
	}

	// ownership cannot shift via a draft.
	if body.GroupId != spec.GroupId {
		return mdb.Draft{}, mdb.NewErrOwnershipMismatch(spec.ResourceId, spec.GroupId)
	}

	snapshot, err := kpgintr.GetSnapshotOne(ctx, tx, spec.SnapshotId)
	if err != nil {
		return mdb.Draft{}, err
	}
	if snapshot.ResourceId != spec.ResourceId {
		return mdb.Draft{}, mdb.NewErrSnapshotMismatch(spec.SnapshotId, spec.ResourceId)
	}

	// first wins: a second modification draft for (resource, creator) fails.
	var count int64
	if err := tx.QueryRow(
		ctx,
		`
		select count(*) from "draft"
		where ("payload"->>'resource_id')::bigint = $1 and "creator_id" = $2
		`,
		spec.ResourceId, spec.CreatorId,
	).Scan(&count); err != nil {
		return mdb.Draft{}, err
	}
	if 0 < count {
		return mdb.Draft{}, mdb.NewErrDraftExists(spec.ResourceId, spec.CreatorId)
	}

	draft := mdb.Draft{
		ResourceType: body.ResourceType,
		GroupId:      spec.GroupId,
		CreatorId:    spec.CreatorId,
		Payload: mdb.Modification{
			Data:       spec.Data,
			ResourceId: spec.ResourceId,
			SnapshotId: spec.SnapshotId,
		},
	}

	created, err := insertDraft(ctx, tx, draft)
	if err != nil {
		return mdb.Draft{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return mdb.Draft{}, err
	}
	return created, nil
}

func insertDraft(ctx context.Context, tx kpool.Tx, draft mdb.Draft) (mdb.Draft, error) {
	payload, err := kpgintr.MarshalDraftPayload(draft.Payload)
	if err != nil {
		return mdb.Draft{}, err
	}

	if err := tx.QueryRow(
		ctx,
		`
		insert into "draft" ("resource_type", "group_id", "creator_id", "payload")
		values ($1::resourceType, $2, $3, $4)
		returning "draft_id", "last_modified_on"
		`,
		draft.ResourceType.String(), draft.GroupId, draft.CreatorId, payload,
	).Scan(&draft.DraftId, &draft.LastModifiedOn); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// the partial unique index caught a concurrent duplicate.
			return mdb.Draft{}, kpgerr.Conflict{
				Table:    "draft",
				Identity: fmt.Sprintf("creator_id=%d (constraint: %s)", draft.CreatorId, pgErr.ConstraintName),
			}
		}
		return mdb.Draft{}, err
	}
	return draft, nil
}

func (d *draftPG) Get(
	ctx context.Context, draftId int64, filter mdb.DraftFilter,
) (mdb.Draft, bool, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return mdb.Draft{}, false, err
	}
	defer conn.Release()

	drafts, err := kpgintr.GetDraftBody(ctx, conn, []int64{draftId})
	if err != nil {
		return mdb.Draft{}, false, err
	}

	draft, ok := drafts[draftId]
	if !ok || !filter.Matches(&draft) {
		// a filtered-out draft appears absent, not forbidden.
		return mdb.Draft{}, false, nil
	}
	return draft, true, nil
}

func (d *draftPG) GetOne(
	ctx context.Context, draftId int64, filter mdb.DraftFilter,
) (mdb.Draft, error) {
	draft, ok, err := d.Get(ctx, draftId, filter)
	if err != nil {
		return mdb.Draft{}, err
	}
	if !ok {
		return mdb.Draft{}, kpgerr.Missing{
			Table:    "draft",
			Identity: fmt.Sprintf("draft_id=%d", draftId),
		}
	}
	return draft, nil
}

func (d *draftPG) GetModificationByUser(
	ctx context.Context, userId int64, resourceId int64,
) (mdb.Draft, bool, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return mdb.Draft{}, false, err
	}
	defer conn.Release()

	var draftId int64
	if err := conn.QueryRow(
		ctx,
		`
		select "draft_id" from "draft"
		where ("payload"->>'resource_id')::bigint = $1 and "creator_id" = $2
		`,
		resourceId, userId,
	).Scan(&draftId); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mdb.Draft{}, false, nil
		}
		return mdb.Draft{}, false, err
	}

	drafts, err := kpgintr.GetDraftBody(ctx, conn, []int64{draftId})
	if err != nil {
		return mdb.Draft{}, false, err
	}
	draft, ok := drafts[draftId]
	return draft, ok, nil
}

func (d *draftPG) CountModifications(
	ctx context.Context, resourceId int64, exceptUserId *int64,
) (int64, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var count int64
	if err := conn.QueryRow(
		ctx,
		`
		select count(*) from "draft"
		where ("payload"->>'resource_id')::bigint = $1
			and ($2::bigint is null or "creator_id" <> $2::bigint)
		`,
		resourceId, exceptUserId,
	).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (d *draftPG) Find(
	ctx context.Context, query mdb.DraftFindQuery,
) ([]mdb.Draft, int64, error) {
	kind := query.Kind
	if kind == "" {
		kind = mdb.KindAny
	}
	if _, err := mdb.AsDraftKind(kind.String()); err != nil {
		return nil, 0, err
	}

	var resourceType *string
	if query.ResourceType != "" {
		if _, err := mdb.AsResourceType(query.ResourceType.String()); err != nil {
			return nil, 0, err
		}
		t := query.ResourceType.String()
		resourceType = &t
	}

	var limit *int64
	if 0 < query.Limit {
		l := query.Limit
		limit = &l
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select "draft_id", count(*) over () as "total"
		from "draft"
		where "creator_id" = $1
			and ($2::varchar is null or "resource_type" = $2::resourceType)
			and ($3::bigint is null or "group_id" = $3::bigint)
			and ($4::bigint is null
				or ("payload"->>'base_resource_id')::bigint = $4::bigint)
			and ($5::varchar = 'any'
				or ($5::varchar = 'resource' and "payload"->>'resource_id' is null)
				or ($5::varchar = 'modification' and "payload"->>'resource_id' is not null))
		order by "draft_id"
		limit $6 offset $7
		`,
		query.CreatorId, resourceType, query.GroupId, query.BaseResourceId,
		kind.String(), limit, query.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var total int64
	draftIds := []int64{}
	for rows.Next() {
		var draftId int64
		if err := rows.Scan(&draftId, &total); err != nil {
			return nil, 0, err
		}
		draftIds = append(draftIds, draftId)
	}
	rows.Close()

	// when the window lands past the last match, no row carries the
	// window total; count the matches on their own.
	if len(draftIds) == 0 {
		if err := conn.QueryRow(
			ctx,
			`
			select count(*)
			from "draft"
			where "creator_id" = $1
				and ($2::varchar is null or "resource_type" = $2::resourceType)
				and ($3::bigint is null or "group_id" = $3::bigint)
				and ($4::bigint is null
					or ("payload"->>'base_resource_id')::bigint = $4::bigint)
				and ($5::varchar = 'any'
					or ($5::varchar = 'resource' and "payload"->>'resource_id' is null)
					or ($5::varchar = 'modification' and "payload"->>'resource_id' is not null))
			`,
			query.CreatorId, resourceType, query.GroupId, query.BaseResourceId,
			kind.String(),
		).Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	drafts, err := kpgintr.GetDraftBody(ctx, conn, draftIds)
	if err != nil {
		return nil, 0, err
	}

	page := make([]mdb.Draft, 0, len(draftIds))
	for _, draftId := range draftIds {
		// a draft removed between the two reads is just absent.
		if draft, ok := drafts[draftId]; ok {
			page = append(page, draft)
		}
	}
	return page, total, nil
}

func lockDraft(ctx context.Context, tx kpool.Queryer, draftId int64) error {
	rows, err := tx.Query(
		ctx,
		`select "draft_id" from "draft" where "draft_id" = $1 for update`,
		draftId,
	)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

func (d *draftPG) Update(
	ctx context.Context, draftId int64, update mdb.DraftUpdate,
) (mdb.Draft, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return mdb.Draft{}, err
	}
	defer tx.Rollback(ctx)

	if err := lockDraft(ctx, tx, draftId); err != nil {
		return mdb.Draft{}, err
	}

	drafts, err := kpgintr.GetDraftBody(ctx, tx, []int64{draftId})
	if err != nil {
		return mdb.Draft{}, err
	}
	draft, ok := drafts[draftId]
	if !ok {
		return mdb.Draft{}, kpgerr.Missing{
			Table:    "draft",
			Identity: fmt.Sprintf("draft_id=%d", draftId),
		}
	}

	switch payload := draft.Payload.(type) {
	case mdb.NewResource:
		if update.SnapshotId != nil {
			return mdb.Draft{}, mdb.NewErrModificationRequired(draftId)
		}
		payload.Data = update.Data
		draft.Payload = payload

	case mdb.Modification:
		if update.SnapshotId != nil {
			snapshot, err := kpgintr.GetSnapshotOne(ctx, tx, *update.SnapshotId)
			if err != nil {
				return mdb.Draft{}, err
			}
			// re-pinning may only move along the same resource's history.
			if snapshot.ResourceId != payload.ResourceId {
				return mdb.Draft{}, mdb.NewErrSnapshotMismatch(
					*update.SnapshotId, payload.ResourceId,
				)
			}
			payload.SnapshotId = *update.SnapshotId
		}
		payload.Data = update.Data
		draft.Payload = payload
	}

	marshalled, err := kpgintr.MarshalDraftPayload(draft.Payload)
	if err != nil {
		return mdb.Draft{}, err
	}

	if err := tx.QueryRow(
		ctx,
		`
		update "draft"
		set "payload" = $2, "last_modified_on" = now()
		where "draft_id" = $1
		returning "last_modified_on"
		`,
		draftId, marshalled,
	).Scan(&draft.LastModifiedOn); err != nil {
		return mdb.Draft{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return mdb.Draft{}, err
	}
	return draft, nil
}

func (d *draftPG) Delete(ctx context.Context, draftId int64) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ctag, err := tx.Exec(
		ctx, `delete from "draft" where "draft_id" = $1`, draftId,
	)
	if err != nil {
		return err
	}
	if ctag.RowsAffected() == 0 {
		return kpgerr.Missing{
			Table:    "draft",
			Identity: fmt.Sprintf("draft_id=%d", draftId),
		}
	}

	return tx.Commit(ctx)
}

func (d *draftPG) HasModifications(
	ctx context.Context, resourceIds []int64, userId *int64,
) ([]int64, error) {
	if len(resourceIds) == 0 {
		return []int64{}, nil
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select distinct ("payload"->>'resource_id')::bigint
		from "draft"
		where ("payload"->>'resource_id')::bigint = any($1::bigint[])
			and ($2::bigint is null or "creator_id" = $2::bigint)
		`,
		resourceIds, userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	modified := []int64{}
	for rows.Next() {
		var resourceId int64
		if err := rows.Scan(&resourceId); err != nil {
			return nil, err
		}
		modified = append(modified, resourceId)
	}
	return utils.Sorted(modified), nil
}

func (d *draftPG) HasModification(
	ctx context.Context, resourceId int64, userId *int64,
) (bool, error) {
	modified, err := d.HasModifications(ctx, []int64{resourceId}, userId)
	if err != nil {
		return false, err
	}
	return len(modified) == 1, nil
}

func (d *draftPG) Promote(ctx context.Context, draftId int64) (mdb.Resource, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return mdb.Resource{}, err
	}
	defer tx.Rollback(ctx)

	if err := lockDraft(ctx, tx, draftId); err != nil {
		return mdb.Resource{}, err
	}

	drafts, err := kpgintr.GetDraftBody(ctx, tx, []int64{draftId})
	if err != nil {
		return mdb.Resource{}, err
	}
	draft, ok := drafts[draftId]
	if !ok {
		return mdb.Resource{}, kpgerr.Missing{
			Table:    "draft",
			Identity: fmt.Sprintf("draft_id=%d", draftId),
		}
	}

	var promoted mdb.Resource
	switch payload := draft.Payload.(type) {
	case mdb.NewResource:
		created, err := kpgintr.RegisterResource(ctx, tx, mdb.ResourceSpec{
			ResourceType:   draft.ResourceType,
			GroupId:        draft.GroupId,
			CreatorId:      draft.CreatorId,
			Data:           payload.Data,
			BaseResourceId: payload.BaseResourceId,
		}, d.rules)
		if err != nil {
			return mdb.Resource{}, err
		}
		promoted = created

	case mdb.Modification:
		if err := kpgintr.LockResource(ctx, tx, payload.ResourceId); err != nil {
			return mdb.Resource{}, err
		}
		bodies, err := kpgintr.GetResourceBody(ctx, tx, []int64{payload.ResourceId})
		if err != nil {
			return mdb.Resource{}, err
		}
		body, ok := bodies[payload.ResourceId]
		if !ok {
			return mdb.Resource{}, kpgerr.Missing{
				Table:    "resource",
				Identity: fmt.Sprintf("resource_id=%d", payload.ResourceId),
			}
		}

		// the resource may have been locked since the draft was taken.
		if body.IsDeleted {
			return mdb.Resource{}, kpgerr.Deleted{
				Table:    "resource",
				Identity: fmt.Sprintf("resource_id=%d", payload.ResourceId),
			}
		}
		if body.IsReadonly {
			return mdb.Resource{}, mdb.NewErrResourceReadonly(payload.ResourceId)
		}

		// committing over someone else's newer snapshot is refused;
		// the caller re-pins via Update after reviewing.
		if body.LatestSnapshotId != payload.SnapshotId {
			return mdb.Resource{}, mdb.NewErrStaleDraft(
				draftId, payload.SnapshotId, body.LatestSnapshotId,
			)
		}

		snapshot, err := kpgintr.AppendSnapshot(ctx, tx, payload.ResourceId, mdb.SnapshotSpec{
			CreatorId: draft.CreatorId,
			Data:      payload.Data,
		})
		if err != nil {
			return mdb.Resource{}, err
		}

		locks, err := kpgintr.GetLocks(ctx, tx, []int64{payload.ResourceId})
		if err != nil {
			return mdb.Resource{}, err
		}
		body.LatestSnapshotId = snapshot.SnapshotId
		ls := locks[payload.ResourceId]
		if ls == nil {
			ls = []mdb.Lock{}
		}
		promoted = mdb.Resource{ResourceBody: body, Locks: ls}
	}

	if _, err := tx.Exec(
		ctx, `delete from "draft" where "draft_id" = $1`, draftId,
	); err != nil {
		return mdb.Resource{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return mdb.Resource{}, err
	}
	return promoted, nil
}
