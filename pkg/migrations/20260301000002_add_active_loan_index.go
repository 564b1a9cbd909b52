package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	// Stores that already hold several open loans for one book get the index
	// from BringUpToDate once those loans are returned.
	up := func(ctx context.Context, db *bun.DB) error {
		_, err := EnsureActiveLoanIndex(ctx, db)
		return err
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP INDEX IF EXISTS " + activeLoanIndex)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
