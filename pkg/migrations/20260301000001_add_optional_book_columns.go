package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		_, err := EnsureColumns(ctx, db, "books", OptionalBookColumns)
		return err
	}

	// The columns may have been part of the table from the start, so there is
	// nothing that can safely be dropped here.
	down := func(_ context.Context, _ *bun.DB) error {
		return nil
	}

	Migrations.MustRegister(up, down)
}
