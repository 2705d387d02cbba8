//go:build integration

// Package testdb provides a PostgreSQL database for integration tests.
//
// Setup connects to FORGE_TEST_DATABASE_URL when it is set (a .env file is
// honored) and otherwise starts a disposable postgres container with
// testcontainers. Either way the embedded migrations are applied before
// the database is handed out.
//
// Tests isolate their writes with WithTx, which runs the test body inside a
// transaction that is always rolled back:
//
//	db := testdb.Setup(t)
//	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//		tasks := postgres.NewPostgresTaskStore(tx, logger.Discard())
//		// ...
//	})
package testdb
