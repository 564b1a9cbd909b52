package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		_, err := NormalizeTimestamps(ctx, db)
		return err
	}

	// Rewritten values read back as the same instants, so there is nothing to
	// undo.
	down := func(_ context.Context, _ *bun.DB) error {
		return nil
	}

	Migrations.MustRegister(up, down)
}
