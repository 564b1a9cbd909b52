package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shelfkeeper/shelfkeeper/pkg/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const memoryPath = ":memory:"

type key int

const ctxKey key = 0

// WithLogging turns on query logging for everything run with the returned
// context, provided the database was opened with DatabaseDebug.
func WithLogging(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey, true)
}

type logQueryHook struct {
	log logger.Logger
}

func (*logQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (qh *logQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	enabled, ok := ctx.Value(ctxKey).(bool)
	if !ok || !enabled {
		return
	}

	data := logger.Data{"duration_ms": time.Since(event.StartTime).Milliseconds()}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		data["error"] = event.Err.Error()
	}
	qh.log.Debug(event.Query, data)
}

// New opens the store handle described by cfg. The handle is shared by the
// catalog and the ledger; every operation goes through a single connection
// so that per-connection pragmas (foreign keys) and in-memory databases
// behave the same way for every caller.
func New(cfg *config.Config) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseFilePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sqldb.SetMaxOpenConns(1)
	// An in-memory database disappears with its last connection.
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)
	sqldb.SetConnMaxIdleTime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	// print out all queries in debug mode
	if cfg.DatabaseDebug {
		db.AddQueryHook(&logQueryHook{logger.NewWithLevel("debug")})
	}

	retries := cfg.DatabaseConnectRetryCount
	if retries < 1 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		_, err = db.Exec("SELECT 1")
		if err != nil {
			time.Sleep(cfg.DatabaseConnectRetryDelay)
			continue
		}
		break
	}
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}

	if cfg.DatabaseFilePath != memoryPath {
		// WAL keeps readers unblocked while a write is in flight.
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "failed to enable WAL mode")
		}
	}

	busyTimeoutMs := cfg.DatabaseBusyTimeout.Milliseconds()
	_, err = db.Exec("PRAGMA busy_timeout=?", busyTimeoutMs)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to set busy_timeout")
	}

	// Loans are removed along with their book through ON DELETE CASCADE.
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}

	return db, nil
}
