package repo

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

// categoryRows yields (category, total) pairs.
type categoryRows struct {
	testRowsBase
	names  []string
	totals []int64
	pos    int
	closed bool
}

func (r *categoryRows) Next() bool {
	if r.pos >= len(r.names) {
		return false
	}
	r.pos++
	return true
}

func (r *categoryRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.names[r.pos-1]
	*dest[1].(*int64) = r.totals[r.pos-1]
	return nil
}

func (r *categoryRows) Err() error { return nil }

func (r *categoryRows) Close() { r.closed = true }
