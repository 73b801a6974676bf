//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

// WithTx runs fn inside a transaction that is rolled back afterwards, even
// when fn panics or fails the test.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		if IsCI() {
			stats := db.Stats()
			t.Logf("connection stats: max_open=%d open=%d in_use=%d idle=%d",
				stats.MaxOpenConnections, stats.OpenConnections, stats.InUse, stats.Idle)
		}
		t.Fatalf("failed to begin transaction: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				t.Logf("failed to roll back transaction after panic: %v", rbErr)
			}
			// ALLOW-PANIC
			panic(r)
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			t.Logf("failed to roll back transaction: %v", rbErr)
		}
	}()

	fn(t, tx)
}
