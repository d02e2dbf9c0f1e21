package pgxdriver

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// nonTransactionalStatement parses sql and returns a short description of the
// first statement PostgreSQL would reject inside a transaction block, or ""
// if there is none.
func nonTransactionalStatement(sql string) (string, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return "", nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parsing SQL: %w", err)
	}

	for _, raw := range tree.Stmts {
		switch node := raw.Stmt.Node.(type) {
		case *pg_query.Node_IndexStmt:
			if node.IndexStmt != nil && node.IndexStmt.Concurrent {
				return "CREATE INDEX CONCURRENTLY", nil
			}
		case *pg_query.Node_DropStmt:
			if node.DropStmt != nil && node.DropStmt.Concurrent {
				return "DROP INDEX CONCURRENTLY", nil
			}
		case *pg_query.Node_VacuumStmt:
			return "VACUUM", nil
		case *pg_query.Node_CreatedbStmt:
			return "CREATE DATABASE", nil
		case *pg_query.Node_DropdbStmt:
			return "DROP DATABASE", nil
		case *pg_query.Node_AlterSystemStmt:
			return "ALTER SYSTEM", nil
		}
	}

	return "", nil
}
