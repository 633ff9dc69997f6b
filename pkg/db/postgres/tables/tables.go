// manupirate records to postgres.
package tables

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/jackc/pgconn"

	kpgintr "github.com/modelyard/modelyard/pkg/db/postgres/internal"
	kpool "github.com/modelyard/modelyard/pkg/db/postgres/pool"
)

func withCause(v any, reason error) error {
	return fmt.Errorf("error caused inserting record %+v: %w", v, reason)
}

// table-level operations for PostgreSQL.
//
// Note: this package DOES NOT verify/guarantee consistencies of records.
//
// naming convention:
//
//	method of Tables are named according convention below:
//
//	- `Insert...` : insert a record into a table
//	    for example, `InsertResource` inserts a record into `"resource"` table only.
//	    (So, it will cause error when no `"user_group"` record for that does not exist. Baware.)
type Tables struct {
	ctx  context.Context
	pool kpool.Pool
}

func New(ctx context.Context, pool kpool.Pool) *Tables {
	return &Tables{
		ctx: ctx, pool: pool,
	}
}

func (f *Tables) acquire() (kpool.Conn, error) {
	return f.pool.Acquire(f.ctx)
}

func shouldEffect(ctag pgconn.CommandTag, require int) error {
	aff := ctag.RowsAffected()
	if int64(require) <= aff {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	if ok {
		return fmt.Errorf("added rows are not enough @ %s:%d", file, line)
	} else {
		return errors.New("added rows are not enough")
	}
}

// nilWhenZero maps the zero timestamp to nil, so that
// `coalesce($n, now())` in inserts falls back to the database clock.
func nilWhenZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (f *Tables) InsertAccount(a *Account) error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		f.ctx,
		`insert into "account" ("user_id", "username", "deleted") values ($1, $2, $3)`,
		a.UserId, a.Username, a.Deleted,
	)
	if err != nil {
		return withCause(a, err)
	}
	return shouldEffect(ctag, 1)
}

func (f *Tables) InsertUserGroup(g *UserGroup) error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		f.ctx,
		`insert into "user_group" ("group_id", "name", "deleted") values ($1, $2, $3)`,
		g.GroupId, g.Name, g.Deleted,
	)
	if err != nil {
		return withCause(g, err)
	}
	return shouldEffect(ctag, 1)
}

func (f *Tables) InsertMembership(m *Membership) error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		f.ctx,
		`insert into "membership" ("group_id", "user_id") values ($1, $2)`,
		m.GroupId, m.UserId,
	)
	if err != nil {
		return withCause(m, err)
	}
	return shouldEffect(ctag, 1)
}

// insert a record into `resource` table only, with null latest_snapshot_id.
//
// Insert snapshots and call `SetLatestSnapshot` to point the resource
// at one of them.
func (f *Tables) InsertResource(r *Resource) error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		f.ctx,
		`
		insert into "resource" ("resource_id", "resource_type", "group_id")
		values ($1, $2::resourceType, $3)
		`,
		r.ResourceId, r.ResourceType.String(), r.GroupId,
	)
	if err != nil {
		return withCause(r, err)
	}
	return shouldEffect(ctag, 1)
}

func (f *Tables) InsertSnapshot(s *Snapshot) error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	data, err := kpgintr.MarshalResourceData(s.ResourceData)
	if err != nil {
		return withCause(s, err)
	}

	ctag, err := conn.Exec(
		f.ctx,
		`
		insert into "resource_snapshot"
		("snapshot_id", "resource_id", "resource_type", "creator_id", "created_on", "resource_data")
		values ($1, $2, $3::resourceType, $4, coalesce($5, now()), $6)
		`,
		s.SnapshotId, s.ResourceId, s.ResourceType.String(), s.CreatorId,
		nilWhenZero(s.CreatedOn), data,
	)
	if err != nil {
		return withCause(s, err)
	}
	return shouldEffect(ctag, 1)
}

// SetLatestSnapshot points the resource at a snapshot.
//
// When snapshotId is 0, the largest snapshot id of the resource is used.
func (f *Tables) SetLatestSnapshot(resourceId int64, snapshotId int64) error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		f.ctx,
		`
		update "resource"
		set "latest_snapshot_id" = coalesce(
			nullif($2::bigint, 0),
			(select max("snapshot_id") from "resource_snapshot" where "resource_id" = $1)
		)
		where "resource_id" = $1
		`,
		resourceId, snapshotId,
	)
	if err != nil {
		return withCause(struct {
			ResourceId int64
			SnapshotId int64
		}{ResourceId: resourceId, SnapshotId: snapshotId}, err)
	}
	return shouldEffect(ctag, 1)
}

func (f *Tables) InsertLock(l *Lock) error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		f.ctx,
		`insert into "resource_lock" ("resource_id", "lock_type") values ($1, $2::lockType)`,
		l.ResourceId, l.LockType.String(),
	)
	if err != nil {
		return withCause(l, err)
	}
	return shouldEffect(ctag, 1)
}

func (f *Tables) InsertDependency(d *Dependency) error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		f.ctx,
		`insert into "resource_dependency" ("parent_id", "child_id") values ($1, $2)`,
		d.ParentId, d.ChildId,
	)
	if err != nil {
		return withCause(d, err)
	}
	return shouldEffect(ctag, 1)
}

func (f *Tables) InsertDraft(d *Draft) error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	payload, err := kpgintr.MarshalDraftPayload(d.Payload)
	if err != nil {
		return withCause(d, err)
	}

	ctag, err := conn.Exec(
		f.ctx,
		`
		insert into "draft"
		("draft_id", "resource_type", "group_id", "creator_id", "last_modified_on", "payload")
		values ($1, $2::resourceType, $3, $4, coalesce($5, now()), $6)
		`,
		d.DraftId, d.ResourceType.String(), d.GroupId, d.CreatorId,
		nilWhenZero(d.LastModifiedOn), payload,
	)
	if err != nil {
		return withCause(d, err)
	}
	return shouldEffect(ctag, 1)
}

// SyncSequences advances the serial sequences past the ids inserted
// explicitly, so that records created through the repositories do not
// collide with fixture records.
func (f *Tables) SyncSequences() error {
	conn, err := f.acquire()
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, target := range []struct{ table, column string }{
		{table: "account", column: "user_id"},
		{table: "user_group", column: "group_id"},
		{table: "resource", column: "resource_id"},
		{table: "resource_snapshot", column: "snapshot_id"},
		{table: "draft", column: "draft_id"},
	} {
		if _, err := conn.Exec(
			f.ctx,
			fmt.Sprintf(
				`select setval(
					pg_get_serial_sequence('%s', '%s'),
					coalesce((select max(%q) from %q), 0) + 1,
					false
				)`,
				target.table, target.column, target.column, target.table,
			),
		); err != nil {
			return err
		}
	}
	return nil
}
