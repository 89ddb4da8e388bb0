package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// txMaxAttempts bounds the internal retry loop for transactions that
// fail with a deadlock or lock wait timeout.  Retries apply only to
// those transient failures; business rejects surface immediately.
const txMaxAttempts = 3

// isRetryable reports whether the error is a MySQL deadlock (1213) or
// lock wait timeout (1205), the two failures worth retrying with a
// fresh transaction.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "1213") || strings.Contains(msg, "1205")
}

// runInTx executes fn inside a transaction and commits when fn returns
// nil.  On a retryable failure the whole transaction is re-run with a
// short linear backoff, up to txMaxAttempts times; exhausting the
// attempts surfaces ErrConflict so callers can tell a transient loss
// from a terminal business decision.
func runInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * 50 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = attemptTx(ctx, db, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func attemptTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// isDuplicateKey reports a MySQL duplicate entry error (1062).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
