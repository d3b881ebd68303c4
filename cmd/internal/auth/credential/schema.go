package credential

import (
	"context"
	"fmt"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func schemaStatements(d dialect) []string {
	intType := "INTEGER"
	if d == dialectPostgres {
		intType = "BIGINT"
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS principal (
			id %s NOT NULL PRIMARY KEY
		)`, intType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS session (
			id TEXT NOT NULL PRIMARY KEY,
			principal_id %s NOT NULL REFERENCES principal(id),
			expires_at %s NOT NULL
		)`, intType, intType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS api_key (
			key TEXT NOT NULL PRIMARY KEY,
			principal_id %s NOT NULL REFERENCES principal(id),
			updated_at %s NOT NULL
		)`, intType, intType),
		`CREATE INDEX IF NOT EXISTS session_principal_id_idx ON session (principal_id)`,
		`CREATE INDEX IF NOT EXISTS api_key_principal_id_idx ON api_key (principal_id)`,
	}
}

const seedPrincipalStmt = `INSERT INTO principal (id) VALUES (?) ON CONFLICT (id) DO NOTHING`

// bootstrap creates the schema if needed and seeds the local principal.
// Every statement is idempotent, so it is safe on every startup.
func bootstrap(ctx context.Context, st Store, d dialect) error {
	return st.InTx(ctx, func(ex Executor) error {
		for _, stmt := range schemaStatements(d) {
			if _, err := ex.Execute(ctx, stmt); err != nil {
				return storeErr("credential.bootstrap.schema", err)
			}
		}
		if _, err := ex.Execute(ctx, seedPrincipalStmt, LocalPrincipalID); err != nil {
			return storeErr("credential.bootstrap.seed", err)
		}
		return nil
	})
}
