package database

import (
	"context"
	"database/sql"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const (
	maxTxRetries = 3
	baseDelay    = 50 * time.Millisecond
	maxDelay     = 2 * time.Second
)

// RunInTx runs fn in a transaction that commits when fn returns nil and rolls
// back otherwise, so a failed operation never leaves a partial write behind.
// When SQLite reports the file as busy the whole transaction is retried with
// backoff.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	return retryWithBackoff(ctx, maxTxRetries, func() error {
		return db.RunInTx(ctx, &sql.TxOptions{}, fn)
	})
}

// isBusyError checks if the error is a SQLite BUSY or LOCKED error. Works with
// both the mattn/go-sqlite3 and modernc.org/sqlite drivers.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isBusyError(err) || attempt == maxRetries {
			return err
		}

		delay := baseDelay * time.Duration(1<<attempt)
		delay += time.Duration(rand.Int63n(int64(delay / 4)))
		if delay > maxDelay {
			delay = maxDelay
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(delay):
		}
	}
	return err
}
