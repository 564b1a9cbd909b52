package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// BringUpToDate applies every pending migration and then reconciles what an
// adopted older store may still lack: optional book columns, timestamps in the
// stored format and the one-active-loan index. It is safe to call on every
// startup.
func BringUpToDate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	err := migrator.Init(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	added, err := EnsureColumns(ctx, db, "books", OptionalBookColumns)
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		logger.FromContext(ctx).Info("added missing book columns", logger.Data{"columns": added})
	}

	rewritten, err := NormalizeTimestamps(ctx, db)
	if err != nil {
		return nil, err
	}
	if rewritten > 0 {
		logger.FromContext(ctx).Info("normalized legacy timestamps", logger.Data{"values": rewritten})
	}

	duplicates, err := EnsureActiveLoanIndex(ctx, db)
	if err != nil {
		return nil, err
	}
	if duplicates > 0 {
		logger.FromContext(ctx).Warn("skipping unique active loan index", logger.Data{"books_with_duplicate_loans": duplicates})
	}

	return group, nil
}
