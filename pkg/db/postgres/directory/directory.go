package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	mdb "github.com/modelyard/modelyard/pkg/db"
	kpgerr "github.com/modelyard/modelyard/pkg/db/postgres/errors"
	kpool "github.com/modelyard/modelyard/pkg/db/postgres/pool"
)

type directoryPG struct { // implements mdb.AccountDirectory
	pool kpool.Pool
}

// New returns an AccountDirectory backed by the "account", "user_group"
// and "membership" tables.
func New(pool kpool.Pool) *directoryPG {
	return &directoryPG{pool: pool}
}

func (d *directoryPG) AssertUserExists(ctx context.Context, userId int64) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	var deleted bool
	if err := conn.QueryRow(
		ctx, `select "deleted" from "account" where "user_id" = $1`, userId,
	).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kpgerr.Missing{
				Table: "account", Identity: fmt.Sprintf("user_id=%d", userId),
			}
		}
		return err
	}
	if deleted {
		return kpgerr.Deleted{
			Table: "account", Identity: fmt.Sprintf("user_id=%d", userId),
		}
	}
	return nil
}

func (d *directoryPG) AssertGroupExists(ctx context.Context, groupId int64) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	var deleted bool
	if err := conn.QueryRow(
		ctx, `select "deleted" from "user_group" where "group_id" = $1`, groupId,
	).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kpgerr.Missing{
				Table: "user_group", Identity: fmt.Sprintf("group_id=%d", groupId),
			}
		}
		return err
	}
	if deleted {
		return kpgerr.Deleted{
			Table: "user_group", Identity: fmt.Sprintf("group_id=%d", groupId),
		}
	}
	return nil
}

func (d *directoryPG) AssertUserInGroup(ctx context.Context, userId int64, groupId int64) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	var found bool
	if err := conn.QueryRow(
		ctx,
		`
		select exists (
			select 1 from "membership"
			where "user_id" = $1 and "group_id" = $2
		)
		`,
		userId, groupId,
	).Scan(&found); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf(
			"%w: user %d in group %d", mdb.ErrNotMember, userId, groupId,
		)
	}
	return nil
}
