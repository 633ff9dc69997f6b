package internal_test

import (
	"context"
	"testing"

	testutilctx "github.com/modelyard/modelyard/internal/testutils/context"
	mdb "github.com/modelyard/modelyard/pkg/db"
	kpgintr "github.com/modelyard/modelyard/pkg/db/postgres/internal"
	kpool "github.com/modelyard/modelyard/pkg/db/postgres/pool"
	"github.com/modelyard/modelyard/pkg/db/postgres/pool/testenv"
	"github.com/modelyard/modelyard/pkg/db/postgres/tables"
	th "github.com/modelyard/modelyard/pkg/db/postgres/testhelpers"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

const (
	userAlice int64 = 100
	groupML   int64 = 10
)

func fixture(ctx context.Context, t *testing.T, pool kpool.Pool) *tables.Tables {
	t.Helper()

	tbls := tables.New(ctx, pool)
	if err := tbls.InsertAccount(&tables.Account{UserId: userAlice, Username: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := tbls.InsertUserGroup(&tables.UserGroup{GroupId: groupML, Name: "ml-platform"}); err != nil {
		t.Fatal(err)
	}
	if err := tbls.SyncSequences(); err != nil {
		t.Fatal(err)
	}
	return tbls
}

func TestRegisterResource(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)

	t.Run("it writes the resource, its first snapshot and the parent edge, uncommitted", func(t *testing.T) {
		ctx, cancel := testutilctx.WithTest(context.Background(), t)
		defer cancel()
		pgpool := poolBroaker.GetPool(ctx, t)
		fixture(ctx, t, pgpool)

		var parentId, childId int64
		if err := th.BeginFuncToRollback(ctx, pgpool, func(tx kpool.Tx) error {
			txNow := try.To(th.PGNow(ctx, tx)).OrFatal(t)

			parent := try.To(kpgintr.RegisterResource(ctx, tx, mdb.ResourceSpec{
				ResourceType: mdb.TypeExperiment, GroupId: groupML, CreatorId: userAlice,
				Data: mdb.ResourceData{"name": "exp-1"},
			}, mdb.DefaultDependencyRules())).OrFatal(t)
			parentId = parent.ResourceId

			child := try.To(kpgintr.RegisterResource(ctx, tx, mdb.ResourceSpec{
				ResourceType: mdb.TypeEntryPoint, GroupId: groupML, CreatorId: userAlice,
				Data:           mdb.ResourceData{"name": "train"},
				BaseResourceId: &parent.ResourceId,
			}, mdb.DefaultDependencyRules())).OrFatal(t)
			childId = child.ResourceId

			bodies := try.To(kpgintr.GetResourceBody(
				ctx, tx, []int64{parent.ResourceId, child.ResourceId},
			)).OrFatal(t)
			if len(bodies) != 2 {
				t.Errorf("both resources should be visible in the transaction: %+v", bodies)
			}

			snapshot := try.To(kpgintr.GetSnapshotOne(ctx, tx, parent.LatestSnapshotId)).OrFatal(t)
			if snapshot.ResourceId != parent.ResourceId || snapshot.CreatorId != userAlice {
				t.Errorf("unexpected first snapshot: %+v", snapshot)
			}
			// now() is pinned for the whole transaction.
			if !snapshot.CreatedOn.Equal(txNow) {
				t.Errorf(
					"created_on should be the transaction timestamp. (actual, expected) = (%s, %s)",
					snapshot.CreatedOn, txNow,
				)
			}

			var edges int
			if err := tx.QueryRow(
				ctx,
				`select count(*) from "resource_dependency" where "parent_id" = $1 and "child_id" = $2`,
				parent.ResourceId, child.ResourceId,
			).Scan(&edges); err != nil {
				t.Fatal(err)
			}
			if edges != 1 {
				t.Errorf("the parent edge should be recorded: %d", edges)
			}
			return nil
		}); err != nil {
			t.Fatal(err)
		}

		// nothing survives the rollback.
		conn := try.To(pgpool.Acquire(ctx)).OrFatal(t)
		defer conn.Release()
		bodies := try.To(kpgintr.GetResourceBody(ctx, conn, []int64{parentId, childId})).OrFatal(t)
		if len(bodies) != 0 {
			t.Errorf("rolled-back resources should be gone: %+v", bodies)
		}
	})
}

func TestAppendSnapshot(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)

	t.Run("the repoint rolls back with the transaction", func(t *testing.T) {
		ctx, cancel := testutilctx.WithTest(context.Background(), t)
		defer cancel()
		pgpool := poolBroaker.GetPool(ctx, t)
		tbls := fixture(ctx, t, pgpool)

		const resourceId, snapshotId int64 = 1000, 2000
		if err := tbls.InsertResource(&tables.Resource{
			ResourceId: resourceId, ResourceType: "experiment", GroupId: groupML,
		}); err != nil {
			t.Fatal(err)
		}
		if err := tbls.InsertSnapshot(&tables.Snapshot{
			SnapshotId: snapshotId, ResourceId: resourceId, ResourceType: "experiment",
			CreatorId: userAlice, ResourceData: mdb.ResourceData{"name": "exp-1"},
		}); err != nil {
			t.Fatal(err)
		}
		if err := tbls.SetLatestSnapshot(resourceId, snapshotId); err != nil {
			t.Fatal(err)
		}
		if err := tbls.SyncSequences(); err != nil {
			t.Fatal(err)
		}

		if err := th.BeginFuncToRollback(ctx, pgpool, func(tx kpool.Tx) error {
			appended := try.To(kpgintr.AppendSnapshot(ctx, tx, resourceId, mdb.SnapshotSpec{
				CreatorId: userAlice, Data: mdb.ResourceData{"name": "exp-1", "note": "wip"},
			})).OrFatal(t)
			if appended.SnapshotId == snapshotId {
				t.Error("a fresh snapshot id should be issued")
			}

			bodies := try.To(kpgintr.GetResourceBody(ctx, tx, []int64{resourceId})).OrFatal(t)
			if bodies[resourceId].LatestSnapshotId != appended.SnapshotId {
				t.Errorf(
					"the latest snapshot should move in the transaction: %+v",
					bodies[resourceId],
				)
			}
			return nil
		}); err != nil {
			t.Fatal(err)
		}

		conn := try.To(pgpool.Acquire(ctx)).OrFatal(t)
		defer conn.Release()
		bodies := try.To(kpgintr.GetResourceBody(ctx, conn, []int64{resourceId})).OrFatal(t)
		if bodies[resourceId].LatestSnapshotId != snapshotId {
			t.Errorf(
				"the latest snapshot should be restored by the rollback: %+v",
				bodies[resourceId],
			)
		}
	})
}
