// Package dcquery implements the composable predicate/sort builder of spec
// §4.3.5: a Query compiles caller where/sort clauses, restricts to a
// dataset's lookup list and as-of cutoff, appends the mandatory temporal
// tie-breaker, and applies the dedup/masking rules on the streamed result.
//
// Arbitrary caller predicates and sorts are not pushed into the backend
// expression tree (internal/backend only expresses the mechanical
// DataSet/Id/cutoff restriction); they are represented as Go closures here
// and applied in the application layer once a document is decoded. See
// DESIGN.md for the rationale.
package dcquery

import (
	"context"
	"sort"

	"github.com/datacentricorg/datacentric-sub000/internal/backend"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

// Source is the collaborator a Query compiles against: DataSource
// implements this, but dcquery never imports the datasource package, to
// keep Query → DataSource one-directional (DataSource constructs Querys).
type Source interface {
	// ResolveCollection returns the backend collection for payload's root
	// type, and a Reflector able to inspect payload-shaped values.
	ResolveCollection(ctx context.Context, sample any) (backend.Collection, dcrecord.Reflector, error)

	// LookupList returns the dataset's lookup list, already filtered to
	// the as-of cutoff in force, per DatasetRegistry.GetLookupList.
	LookupList(ctx context.Context, loadFrom recordid.RecordId) ([]recordid.RecordId, error)

	// Cutoff returns the as-of RecordId cutoff in force, or recordid.Empty
	// if none.
	Cutoff() recordid.RecordId
}

// Predicate is an application-level filter over a decoded record payload.
type Predicate func(payload any) bool

// Less is an application-level ordering over two decoded record payloads,
// reporting whether a sorts strictly before b.
type Less func(a, b any) bool

// state is the builder's lifecycle: building, then compiled, then
// exhausted, mirroring the lazy cursor it wraps.
type state int

const (
	stateBuilding state = iota
	stateCompiled
	stateExhausted
)

// Query is the builder returned by DataSource.Query (spec §4.3.5).
type Query struct {
	src      Source
	sample   any
	loadFrom recordid.RecordId

	predicates []Predicate
	less       []Less

	st     state
	cursor backend.Cursor
	col    backend.Collection
	refl   dcrecord.Reflector
	seen   map[string]bool
}

// New constructs a building-state Query over sample's root type, scoped to
// loadFrom's lookup list.
func New(src Source, sample any, loadFrom recordid.RecordId) *Query {
	return &Query{src: src, sample: sample, loadFrom: loadFrom, seen: make(map[string]bool)}
}

// Where adds an application-level predicate. Must be called before the
// query is compiled (i.e. before the first call to Next).
func (q *Query) Where(p Predicate) *Query {
	q.mustBeBuilding()
	q.predicates = append(q.predicates, p)
	return q
}

// SortBy adds an ascending-style comparator. Comparators are applied by All
// once the query is drained, as a stable sort in registration order, so
// records they treat as equal keep the (DataSet desc, Id desc) order set up
// in compile. Next does not apply them.
func (q *Query) SortBy(less Less) *Query {
	q.mustBeBuilding()
	q.less = append(q.less, less)
	return q
}

func (q *Query) mustBeBuilding() {
	if q.st != stateBuilding {
		panic("dcquery: Query already compiled")
	}
}

// compile resolves the backend collection/reflector, builds the mechanical
// DataSet/Id filter, and opens the cursor. Idempotent after the first call.
func (q *Query) compile(ctx context.Context) error {
	if q.st != stateBuilding {
		return nil
	}

	col, refl, err := q.src.ResolveCollection(ctx, q.sample)
	if err != nil {
		return err
	}
	list, err := q.src.LookupList(ctx, q.loadFrom)
	if err != nil {
		return err
	}

	datasetIds := make([]any, len(list))
	for i, id := range list {
		datasetIds[i] = id
	}
	filter := backend.In("_dataset", datasetIds)
	if cutoff := q.src.Cutoff(); !cutoff.IsEmpty() {
		filter = backend.And(filter, backend.Lte("_id", cutoff))
	}

	sortSpecs := []backend.SortSpec{
		{Field: "_dataset", Direction: backend.Desc},
		{Field: "_id", Direction: backend.Desc},
	}

	cur, err := col.Find(ctx, filter, sortSpecs)
	if err != nil {
		return err
	}

	q.col = col
	q.refl = refl
	q.cursor = cur
	q.st = stateCompiled
	return nil
}

// Next advances the query, applying the dedup-per-key and tombstone/type
// masking rules of spec §4.3.5 step 4, plus any caller Where predicates.
// Returns false once the underlying cursor and all remaining candidates are
// exhausted.
func (q *Query) Next(ctx context.Context) (dcrecord.Record, bool, error) {
	if q.st == stateExhausted {
		return dcrecord.Record{}, false, nil
	}
	if err := q.compile(ctx); err != nil {
		return dcrecord.Record{}, false, err
	}

	for q.cursor.Next(ctx) {
		doc, err := q.cursor.Decode()
		if err != nil {
			return dcrecord.Record{}, false, err
		}

		if q.seen[doc.Key] {
			continue
		}

		if isTombstoneDoc(doc) {
			q.seen[doc.Key] = true
			continue
		}
		if !typeChainMatches(doc.TypeChain, dcrecord.RequestedTypeName(q.refl, q.sample)) {
			q.seen[doc.Key] = true
			continue
		}

		rec := dcrecord.Record{Id: doc.Id, DataSet: doc.DataSet, Key: doc.Key, Payload: doc.Payload}
		if !q.matchesPredicates(rec.Payload) {
			// Do not mark the key seen: a Where predicate only rules out
			// this version, not the key. An older version further down
			// the (DataSet desc, Id desc) order may still match.
			continue
		}
		q.seen[doc.Key] = true
		return rec, true, nil
	}

	q.st = stateExhausted
	return dcrecord.Record{}, false, q.cursor.Err()
}

func (q *Query) matchesPredicates(payload any) bool {
	for _, p := range q.predicates {
		if !p(payload) {
			return false
		}
	}
	return true
}

func isTombstoneDoc(doc backend.Document) bool {
	return len(doc.TypeChain) > 0 && doc.TypeChain[0] == dcrecord.TombstoneTypeName
}

func typeChainMatches(chain []string, want string) bool {
	for _, t := range chain {
		if t == want {
			return true
		}
	}
	return false
}

// Close releases the underlying cursor. Safe to call multiple times.
func (q *Query) Close(ctx context.Context) error {
	if q.cursor == nil {
		return nil
	}
	return q.cursor.Close(ctx)
}

// All drains the query to completion, applying any caller sort comparators
// registered via SortBy in the application layer (stable, in registration
// order) before returning.
func (q *Query) All(ctx context.Context) ([]dcrecord.Record, error) {
	var out []dcrecord.Record
	for {
		rec, ok, err := q.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, rec)
	}
	if err := q.Close(ctx); err != nil {
		return nil, err
	}

	for i := len(q.less) - 1; i >= 0; i-- {
		less := q.less[i]
		sort.SliceStable(out, func(a, b int) bool { return less(out[a].Payload, out[b].Payload) })
	}
	return out, nil
}
