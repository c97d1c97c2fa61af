package store

import (
	"context"
	"errors"
)

var (
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")

	// ErrUnfilteredWrite is returned for an update or delete without filters.
	ErrUnfilteredWrite = errors.New("refusing write without filters")
)

type Op string

const (
	OpEq  Op = "="
	OpLte Op = "<="
)

// Filter restricts a statement to rows where Column Op Value holds.
// Value may be a Sum, which the store evaluates as a subquery.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

func Lte(column string, value any) Filter {
	return Filter{Column: column, Op: OpLte, Value: value}
}

// Sum is the total of Column over the rows of Table matching Filters, zero when none match.
type Sum struct {
	Table   string
	Column  string
	Filters []Filter
}

type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Offset  int
	Limit   int  // 0 means no limit
	Count   bool // also count every row matching Filters
}

// RecordStore is the record-oriented view of the database the ledger works through.
type RecordStore interface {
	Insert(ctx context.Context, table string, row any) error
	// Select loads matching rows into dest and returns the total when q.Count is set.
	Select(ctx context.Context, table string, q Query, dest any) (int64, error)
	Count(ctx context.Context, table string, filters []Filter) (int64, error)
	Update(ctx context.Context, table string, patch map[string]any, filters []Filter) (int64, error)
	Delete(ctx context.Context, table string, filters []Filter, model any) (int64, error)
	Ping(ctx context.Context) error
}
