// Package postgres implements the internal/store interfaces on PostgreSQL
// through database/sql and the pgx driver. Every store accepts a
// store.DBTX, so it works on the pool or inside a caller's transaction.
// Driver errors are translated to store sentinels by MapError.
package postgres
