// Package postgres implements the repository interfaces on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"

	"github.com/utafrali/natours/internal/query"
	"github.com/utafrali/natours/pkg/database"
)

var (
	dialect = goqu.Dialect("postgres")
	json    = jsoniter.ConfigCompatibleWithStandardLibrary
)

// Options tunes the Query Builder for every repository.
type Options struct {
	MaxLimit int
}

// uniqueViolation is the SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func rowToDocument(row pgx.CollectableRow) (query.Document, error) {
	m, err := pgx.RowToMap(row)
	return query.Document(m), err
}

// runQuery applies b and collects one page of documents.
func runQuery(ctx context.Context, db database.DBTX, op string, b *query.Builder) (res *query.Result, err error) {
	b.Apply()
	sql, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", op, err)
	}

	ctx, end := database.TraceQuery(ctx, op, sql)
	defer func() { end(err) }()

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	docs, err := pgx.CollectRows(rows, rowToDocument)
	if err != nil {
		return nil, fmt.Errorf("%s: collect rows: %w", op, err)
	}
	if docs == nil {
		docs = []query.Document{}
	}
	return &query.Result{Documents: docs, Page: b.Page(), Limit: b.Limit()}, nil
}
