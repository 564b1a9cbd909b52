package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/shelfkeeper/shelfkeeper/pkg/books"
	"github.com/shelfkeeper/shelfkeeper/pkg/config"
	"github.com/shelfkeeper/shelfkeeper/pkg/covers"
	"github.com/shelfkeeper/shelfkeeper/pkg/database"
	"github.com/shelfkeeper/shelfkeeper/pkg/loans"
	"github.com/shelfkeeper/shelfkeeper/pkg/metadata"
	"github.com/shelfkeeper/shelfkeeper/pkg/migrations"
	"github.com/shelfkeeper/shelfkeeper/pkg/version"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

// shell holds everything the commands need. It is filled in by open before
// any command runs.
type shell struct {
	cfg    *config.Config
	db     *bun.DB
	books  *books.Service
	loans  *loans.Service
	covers *covers.Store
	lookup metadata.Lookup
	out    *printer
}

func main() {
	log := logger.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	graceful := signals.Setup()
	go func() {
		<-graceful
		cancel()
	}()

	sh := &shell{}
	app := &cli.App{
		Name:    "shelfkeeper",
		Usage:   "catalog your books and keep track of who borrowed them",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print results as JSON",
			},
		},
		Before: sh.open,
		After:  sh.close,
		Commands: []*cli.Command{
			sh.bookCommand(),
			sh.loanCommand(),
			{
				Name:  "migrate",
				Usage: "bring the database schema up to date",
				Action: func(c *cli.Context) error {
					group, err := migrations.BringUpToDate(c.Context, sh.db)
					if err != nil {
						return err
					}
					if group.ID == 0 {
						sh.out.message("There are no new migrations to run")
						return nil
					}
					sh.out.message("Migrated to %s", group)
					return nil
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Err(err).Fatal("shelfkeeper error")
	}
}

func (sh *shell) open(c *cli.Context) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	db, err := database.New(cfg)
	if err != nil {
		return err
	}

	ctx := c.Context
	if cfg.DatabaseDebug {
		ctx = database.WithLogging(ctx)
		c.Context = ctx
	}

	// The schema is reconciled on every start so an older store keeps working.
	if _, err := migrations.BringUpToDate(ctx, db); err != nil {
		db.Close()
		return err
	}

	sh.cfg = cfg
	sh.db = db
	sh.books = books.NewService(db)
	sh.loans = loans.NewService(db, loans.WithDefaultPeriod(cfg.DefaultLoanDays))
	sh.covers = covers.NewStore(cfg.CoverDir)
	sh.lookup = metadata.NewOpenLibraryClient(cfg)
	sh.out = newPrinter(os.Stdout, c.Bool("json"))
	return nil
}

func (sh *shell) close(_ *cli.Context) error {
	if sh.db == nil {
		return nil
	}
	return errors.WithStack(sh.db.Close())
}
