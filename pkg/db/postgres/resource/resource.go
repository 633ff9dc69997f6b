package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	pgerrcode "github.com/jackc/pgerrcode"
	mdb "github.com/modelyard/modelyard/pkg/db"
	kpgerr "github.com/modelyard/modelyard/pkg/db/postgres/errors"
	kpgintr "github.com/modelyard/modelyard/pkg/db/postgres/internal"
	kpool "github.com/modelyard/modelyard/pkg/db/postgres/pool"
	"github.com/modelyard/modelyard/pkg/utils"
)

type resourcePG struct { // implements mdb.ResourceInterface
	pool      kpool.Pool
	directory mdb.AccountDirectory
	rules     mdb.DependencyRules
}

type Option func(*resourcePG) *resourcePG

func WithDirectory(directory mdb.AccountDirectory) Option {
	return func(r *resourcePG) *resourcePG {
		r.directory = directory
		return r
	}
}

func WithRules(rules mdb.DependencyRules) Option {
	return func(r *resourcePG) *resourcePG {
		r.rules = rules
		return r
	}
}

func New(pool kpool.Pool, directory mdb.AccountDirectory, option ...Option) *resourcePG {
	r := &resourcePG{
		pool:      pool,
		directory: directory,
		rules:     mdb.DefaultDependencyRules(),
	}
	for _, opt := range option {
		r = opt(r)
	}
	return r
}

func (r *resourcePG) Register(ctx context.Context, spec mdb.ResourceSpec) (mdb.Resource, error) {
	if err := r.directory.AssertGroupExists(ctx, spec.GroupId); err != nil {
		return mdb.Resource{}, err
	}
	if err := r.directory.AssertUserExists(ctx, spec.CreatorId); err != nil {
		return mdb.Resource{}, err
	}
	if err := r.directory.AssertUserInGroup(ctx, spec.CreatorId, spec.GroupId); err != nil {
		return mdb.Resource{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mdb.Resource{}, err
	}
	defer tx.Rollback(ctx)

	created, err := kpgintr.RegisterResource(ctx, tx, spec, r.rules)
	if err != nil {
		return mdb.Resource{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return mdb.Resource{}, err
	}
	return created, nil
}

func (r *resourcePG) Get(
	ctx context.Context, resourceIds []int64, policy mdb.DeletionPolicy,
) (map[int64]mdb.Resource, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return get(ctx, conn, resourceIds, policy)
}

func get(
	ctx context.Context, conn kpool.Queryer, resourceIds []int64, policy mdb.DeletionPolicy,
) (map[int64]mdb.Resource, error) {
	bodies, err := kpgintr.GetResourceBody(ctx, conn, resourceIds)
	if err != nil {
		return nil, err
	}

	locks, err := kpgintr.GetLocks(ctx, conn, utils.KeysOf(bodies))
	if err != nil {
		return nil, err
	}

	result := map[int64]mdb.Resource{}
	for resourceId, b := range bodies {
		switch policy {
		case mdb.Deleted:
			if !b.IsDeleted {
				continue
			}
		case mdb.NotDeleted:
			if b.IsDeleted {
				continue
			}
		}

		ls := locks[resourceId]
		if ls == nil {
			ls = []mdb.Lock{}
		}
		result[resourceId] = mdb.Resource{ResourceBody: b, Locks: ls}
	}
	return result, nil
}

func (r *resourcePG) GetOne(
	ctx context.Context, resourceId int64, policy mdb.DeletionPolicy,
) (mdb.Resource, error) {
	resources, err := r.Get(ctx, []int64{resourceId}, policy)
	if err != nil {
		return mdb.Resource{}, err
	}
	res, ok := resources[resourceId]
	if !ok {
		return mdb.Resource{}, kpgerr.Missing{
			Table:    "resource",
			Identity: fmt.Sprintf("resource_id=%d (policy: %s)", resourceId, policy),
		}
	}
	return res, nil
}

func (r *resourcePG) GetSnapshot(ctx context.Context, snapshotId int64) (mdb.Snapshot, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return mdb.Snapshot{}, err
	}
	defer conn.Release()

	return kpgintr.GetSnapshotOne(ctx, conn, snapshotId)
}

func (r *resourcePG) History(ctx context.Context, resourceId int64) ([]mdb.Snapshot, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	bodies, err := kpgintr.GetResourceBody(ctx, conn, []int64{resourceId})
	if err != nil {
		return nil, err
	}
	if _, ok := bodies[resourceId]; !ok {
		return nil, kpgerr.Missing{
			Table:    "resource",
			Identity: fmt.Sprintf("resource_id=%d", resourceId),
		}
	}

	rows, err := conn.Query(
		ctx,
		`
		select "snapshot_id" from "resource_snapshot"
		where "resource_id" = $1
		order by "snapshot_id"
		`,
		resourceId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshotIds := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		snapshotIds = append(snapshotIds, id)
	}

	snapshots, err := kpgintr.GetSnapshotBody(ctx, conn, snapshotIds)
	if err != nil {
		return nil, err
	}

	history := make([]mdb.Snapshot, 0, len(snapshotIds))
	for _, id := range snapshotIds {
		history = append(history, snapshots[id])
	}
	return history, nil
}

func (r *resourcePG) NewSnapshot(
	ctx context.Context, resourceId int64, spec mdb.SnapshotSpec,
) (mdb.Snapshot, error) {
	if err := r.directory.AssertUserExists(ctx, spec.CreatorId); err != nil {
		return mdb.Snapshot{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mdb.Snapshot{}, err
	}
	defer tx.Rollback(ctx)

	snapshot, err := kpgintr.AppendSnapshot(ctx, tx, resourceId, spec)
	if err != nil {
		return mdb.Snapshot{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return mdb.Snapshot{}, err
	}
	return snapshot, nil
}

func (r *resourcePG) Lock(
	ctx context.Context, resourceId int64, lockType mdb.LockType,
) (mdb.Lock, error) {
	if _, err := mdb.AsLockType(lockType.String()); err != nil {
		return mdb.Lock{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mdb.Lock{}, err
	}
	defer tx.Rollback(ctx)

	lock := mdb.Lock{ResourceId: resourceId, LockType: lockType}
	if err := tx.QueryRow(
		ctx,
		`
		insert into "resource_lock" ("resource_id", "lock_type")
		values ($1, $2::lockType)
		returning "created_on"
		`,
		resourceId, lockType.String(),
	).Scan(&lock.CreatedOn); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return mdb.Lock{}, kpgerr.Conflict{
					Table: "resource_lock",
					Identity: fmt.Sprintf(
						"resource_id=%d, lock_type=%s", resourceId, lockType,
					),
				}
			case pgerrcode.ForeignKeyViolation:
				return mdb.Lock{}, kpgerr.Missing{
					Table:    "resource",
					Identity: fmt.Sprintf("resource_id=%d", resourceId),
				}
			}
		}
		return mdb.Lock{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return mdb.Lock{}, err
	}
	return lock, nil
}
