//go:build integration

// Package testdb provides helpers for database integration tests.
//
// Start provides a PostgreSQL database, either the one named by
// CADENCE_TEST_DATABASE_URL or a disposable container started with
// testcontainers. WithTx runs a test body inside a transaction that is always
// rolled back, so tests can share one database without cleaning up after
// themselves.
//
// Callers apply migrations themselves:
//
//	db, err := testdb.Start(ctx)
//	if err != nil { ... }
//	defer db.Close()
//	if err := postgres.Migrate(ctx, db.DB, "up", nil); err != nil { ... }
//
//	testdb.WithTx(t, db.DB, func(t *testing.T, tx *sql.Tx) { ... })
package testdb
