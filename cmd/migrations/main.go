package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shelfkeeper/shelfkeeper/pkg/config"
	"github.com/shelfkeeper/shelfkeeper/pkg/database"
	"github.com/shelfkeeper/shelfkeeper/pkg/migrations"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)

	app := &cli.App{
		Name:  "migrations",
		Usage: "manage the shelfkeeper schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations and add missing book columns",
				Action: func(c *cli.Context) error {
					group, err := migrations.BringUpToDate(c.Context, db)
					if err != nil {
						return err
					}
					if group.ID == 0 {
						fmt.Println("Schema is already up to date")
						return nil
					}
					fmt.Printf("Migrated to %s (%s)\n", group, group.Migrations)
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "roll back the last migration group",
				Action: func(c *cli.Context) error {
					group, err := migrator.Rollback(c.Context)
					if err != nil {
						return err
					}
					if group.ID == 0 {
						fmt.Println("Nothing to roll back")
						return nil
					}
					fmt.Printf("Rolled back %s\n", group)
					return nil
				},
			},
			{
				Name:  "columns",
				Usage: "add any optional book columns an older store is missing",
				Action: func(c *cli.Context) error {
					added, err := migrations.EnsureColumns(c.Context, db, "books", migrations.OptionalBookColumns)
					if err != nil {
						return err
					}
					if len(added) == 0 {
						fmt.Println("All book columns are present")
						return nil
					}
					fmt.Printf("Added %s\n", strings.Join(added, ", "))
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "show applied and pending migrations",
				Action: func(c *cli.Context) error {
					if err := migrator.Init(c.Context); err != nil {
						return err
					}
					ms, err := migrator.MigrationsWithStatus(c.Context)
					if err != nil {
						return err
					}
					for _, m := range ms {
						state := "pending"
						if m.IsApplied() {
							state = fmt.Sprintf("applied in group %d", m.GroupID)
						}
						fmt.Printf("%s  %s\n", m.Name, state)
					}
					return nil
				},
			},
			{
				Name:      "create",
				Usage:     "create a Go migration",
				ArgsUsage: "NAME...",
				Action: func(c *cli.Context) error {
					name := strings.Join(c.Args().Slice(), "_")
					mf, err := migrator.CreateGoMigration(c.Context, name, migrate.WithGoTemplate(migrationTemplate))
					if err != nil {
						return err
					}
					fmt.Printf("Created %s\n", mf.Path)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Error("migrations failed")
		db.Close()
		os.Exit(1)
	}
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, "")
		return errors.WithStack(err)
	}

	down := func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, "")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
`
