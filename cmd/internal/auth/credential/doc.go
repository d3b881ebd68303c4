// Package credential owns every persisted authentication row in passage:
// the principal, its sessions and its API key.
//
// Callers talk to it through two primitives, Execute and QueryOne, plus an
// explicit transaction scope (InTx). Statements are written once with "?"
// placeholders; the Postgres backend rewrites them to "$n" before they reach
// the driver.
//
// Two backends are provided:
//   - PostgresStore on a pgx pool (production).
//   - SQLiteStore on modernc.org/sqlite (single-node default and tests).
//
// Both bootstrap the schema idempotently on construction and seed the local
// principal exactly once.
package credential
