// Package backend defines the storage-driver contract of spec §6: the set
// of collection primitives a concrete backend (document DB, relational, KV)
// must provide for the core to run against. The core never talks to a
// concrete driver directly; it only ever holds a Store.
package backend

import (
	"context"

	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

// Document is the persisted wire shape of spec §6: every document carries
// at minimum _id, _dataset, _key, and _t (the type chain, derived to root),
// plus the opaque payload.
type Document struct {
	Id        recordid.RecordId
	DataSet   recordid.RecordId
	Key       string
	TypeChain []string
	Payload   any
}

// Op is a filter expression operator. Filters are intentionally small:
// equality, set-membership, range, prefix, and conjunction. DataSource uses
// equality, set-membership, range and conjunction to express the mechanical
// DataSet/Id restrictions of spec §4.3.4/4.3.5 and the dataset lookup by
// name. Arbitrary caller predicates are expressed as Go closures in
// internal/dcquery and applied in the application layer rather than pushed
// into this expression tree (see DESIGN.md).
type Op int

const (
	OpEq Op = iota
	OpIn
	OpLte
	OpPrefix
	OpAnd
)

// Expr is one node of a filter expression tree.
type Expr struct {
	Op    Op
	Field string // "_id", "_dataset", "_key", or a payload field name
	Value any
	Sub   []Expr // operands of OpAnd
}

func Eq(field string, value any) Expr    { return Expr{Op: OpEq, Field: field, Value: value} }
func In(field string, value any) Expr    { return Expr{Op: OpIn, Field: field, Value: value} }
func Lte(field string, value any) Expr   { return Expr{Op: OpLte, Field: field, Value: value} }
func Prefix(field string, v string) Expr { return Expr{Op: OpPrefix, Field: field, Value: v} }
func And(exprs ...Expr) Expr             { return Expr{Op: OpAnd, Sub: exprs} }

// Direction is an index element's sort direction.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// SortSpec is one field of a compiled sort order.
type SortSpec struct {
	Field     string
	Direction Direction
}

// Cursor is a lazy, single-pass, finite-length iteration handle (spec §6):
// restartable only by re-issuing the query.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode() (Document, error)
	Err() error
	Close(ctx context.Context) error
}

// Collection is the per-root-type document collection contract of spec §6.
type Collection interface {
	EnsureIndex(ctx context.Context, decl dcrecord.IndexDecl) error
	InsertOne(ctx context.Context, doc Document) error
	FindOne(ctx context.Context, filter Expr, sort []SortSpec) (Document, bool, error)
	Find(ctx context.Context, filter Expr, sort []SortSpec) (Cursor, error)
	Drop(ctx context.Context) error
}

// Store is the backend-wide handle the core holds: it hands out one
// Collection per root type name, and can irreversibly drop everything
// (spec §4.3.7).
type Store interface {
	EnsureCollection(ctx context.Context, rootType string) (Collection, error)
	Drop(ctx context.Context) error
}
