// internal/repository/querier.go
package repository

import (
	"context"
	"database/sql"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so repository operations
// can run standalone or inside a caller-owned transaction handle.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func userKey(userID *string) string {
	if userID == nil {
		return ""
	}
	return *userID
}

func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
